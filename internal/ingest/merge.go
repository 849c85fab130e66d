package ingest

import (
	"strings"

	"github.com/agentic-research/evidencegraph/internal/content"
	"github.com/agentic-research/evidencegraph/internal/graph"
)

// MergeKind says what happens to a finished decoded record: Emit makes it a
// standalone item, every other kind folds it into its parent record.
type MergeKind int

const (
	Emit MergeKind = iota
	MergeParty
	MergePhoneNumber
	MergeEmailAddress
	MergeCoordinate
	MergeOrganization
	MergeUserID
	MergeContactPhoto
	MergeStreetAddress
)

var mergeKinds = map[string]MergeKind{
	"Party":         MergeParty,
	"PhoneNumber":   MergePhoneNumber,
	"EmailAddress":  MergeEmailAddress,
	"Coordinate":    MergeCoordinate,
	"Organization":  MergeOrganization,
	"UserID":        MergeUserID,
	"ContactPhoto":  MergeContactPhoto,
	"StreetAddress": MergeStreetAddress,
}

// classifyRecord maps a decoded record type to its merge kind.
func classifyRecord(recordType string) MergeKind {
	if k, ok := mergeKinds[recordType]; ok {
		return k
	}
	return Emit
}

func (k MergeKind) String() string {
	for name, kind := range mergeKinds {
		if kind == k {
			return name
		}
	}
	return "Emit"
}

// mergeInto applies the side effects of a merged child record to parent.
// field is the name of the field element that enclosed the child.
func mergeInto(k MergeKind, child, parent *graph.Item, field string) {
	src, dst := child.Metadata, parent.Metadata
	switch k {
	case MergeParty:
		mergeParty(child, parent, field)

	case MergePhoneNumber, MergeEmailAddress:
		typ := "PhoneNumber"
		if k == MergeEmailAddress {
			typ = "EmailAddress"
		}
		value, ok := src.Get(graph.Meta("Value"))
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		if category, ok := src.Get(graph.Meta("Category")); ok {
			value += " (" + category + ")"
		}
		dst.Add(graph.Meta(typ), value)

	case MergeCoordinate:
		for _, key := range []string{graph.Meta("Latitude"), graph.Meta("Longitude")} {
			if v, ok := src.Get(key); ok {
				dst.Add(key, v)
			}
		}

	case MergeOrganization:
		value, ok := src.Get(graph.Meta("Name"))
		if !ok {
			return
		}
		if position, ok := src.Get(graph.Meta("Position")); ok {
			value += " (" + position + ")"
		}
		dst.Add(graph.Meta("Organization"), value)

	case MergeUserID:
		if v, ok := src.Get(graph.Meta("Value")); ok {
			dst.Add(graph.Meta("UserID"), v)
		}

	case MergeContactPhoto:
		if p, ok := src.Get(graph.KeyAvatarPath); ok {
			dst.Add(graph.KeyAvatarPath, content.NormalizePath(p))
		}

	case MergeStreetAddress:
		for _, key := range src.Names() {
			for _, v := range src.Values(key) {
				dst.Add(key, v)
			}
		}
	}
}

func mergeParty(child, parent *graph.Item, field string) {
	src, dst := child.Metadata, parent.Metadata

	role, ok := src.Get(graph.Meta("Role"))
	if !ok || role == "General" {
		role = field
	}
	if role == "To" && (field == "Bcc" || field == "Cc") {
		role = field
	}
	if role == "Parties" {
		role = "Participants"
	}

	identifier, hasID := src.Get(graph.Meta("Identifier"))
	name, hasName := src.Get(graph.Meta("Name"))
	var value string
	switch {
	case hasName && hasID && name != identifier:
		value = name + " (" + identifier + ")"
	case hasID:
		value = identifier
	case hasName:
		value = name
	}

	if value != "" {
		switch strings.ToLower(role) {
		case "from":
			dst.Add(graph.KeyMessageFrom, value)
		case "to":
			dst.Add(graph.KeyMessageTo, value)
		case "cc":
			dst.Add(graph.KeyMessageCc, value)
		case "bcc":
			dst.Add(graph.KeyMessageBcc, value)
		default:
			if role != "" {
				dst.Add(graph.Meta(role), value)
			}
		}
	}

	owner, _ := src.Get(graph.Meta("IsPhoneOwner"))
	if !strings.EqualFold(strings.TrimSpace(owner), "true") {
		return
	}
	if value != "" && strings.Contains(parent.MediaType, "chat") {
		dst.Add(graph.KeyPhoneOwner, value)
	}
	if role == "From" {
		dst.Add(graph.KeyFromOwner, "true")
	}
}

// isMessageLike reports whether records of this type carry a date, subject
// and body under the canonical message keys.
func isMessageLike(recordType string) bool {
	return recordType == "InstantMessage" || recordType == "Email"
}

// renameMessageFields moves the raw timestamp, subject and body (or
// snippet) fields to the canonical message keys.
func renameMessageFields(md *graph.Metadata) {
	move := func(from, to string) bool {
		v, ok := md.Get(from)
		md.Remove(from)
		if ok {
			md.Set(to, v)
		} else {
			md.Remove(to)
		}
		return ok
	}
	move(graph.Meta("TimeStamp"), graph.KeyMessageDate)
	move(graph.Meta("Subject"), graph.KeyMessageSubject)
	if !move(graph.Meta("Body"), graph.KeyMessageBody) {
		move(graph.Meta("Snippet"), graph.KeyMessageBody)
	}
}
