package graph

// Metadata keys and media types shared by the ingestion and preview code.
const (
	MetaPrefix = "ufed:"

	KeyExtractionName   = MetaPrefix + "extractionName"
	KeySourceID         = MetaPrefix + "id"
	KeyAvatarPath       = MetaPrefix + "contactphoto_extracted_path"
	KeyAttachmentPath   = MetaPrefix + "attachment_extracted_path"
	KeyEmailAttachNames = MetaPrefix + "email_attach_names"
	KeyPhoneOwner       = MetaPrefix + "phoneOwner"
	KeyFromOwner        = MetaPrefix + "fromOwner"
	KeyJumpTargets      = MetaPrefix + "jumptargets"

	KeyMessageFrom    = "Message-From"
	KeyMessageTo      = "Message-To"
	KeyMessageCc      = "Message-Cc"
	KeyMessageBcc     = "Message-Bcc"
	KeyMessageDate    = "Message:Date"
	KeyMessageSubject = "Message:Subject"
	KeyMessageBody    = "Message:Body"

	MediaTypeRecordPrefix = "application/x-ufed-"
	MediaTypeEmail        = "message/x-ufed-email"
	MediaTypeChat         = MediaTypeRecordPrefix + "chat"
	MediaTypeChatWhatsApp = MediaTypeRecordPrefix + "chat-whatsapp"

	AttrTreeNode = "treeNode"
)

// Meta returns the prefixed metadata key for a report field name.
func Meta(field string) string {
	return MetaPrefix + field
}
