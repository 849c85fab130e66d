// Package reportgen writes synthetic extraction reports for load tests and
// benchmarks. Output is deterministic for a given seed.
package reportgen

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"time"
)

// Options size the generated report.
type Options struct {
	Seed     int64
	Files    int
	Contacts int
	Chats    int
	// MessagesPerChat is the number of messages nested in each chat.
	MessagesPerChat int
	Emails          int
	// DirFanout bounds how many folders each level of the file tree has.
	DirFanout int
}

// Default is a small report touching every record kind.
var Default = Options{Seed: 1, Files: 50, Contacts: 20, Chats: 5, MessagesPerChat: 10, Emails: 10, DirFanout: 4}

var epoch = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

// Write renders a report to w.
func Write(w io.Writer, o Options) error {
	if o.DirFanout < 1 {
		o.DirFanout = 1
	}
	g := &gen{w: bufio.NewWriter(w), rng: rand.New(rand.NewSource(o.Seed))}

	g.printf("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n")
	g.printf("<project id=\"synthetic-%d\" name=\"synthetic\" extractionType=\"AdvancedLogical\" xmlns=\"http://pa.cellebrite.com/report/2.0\">\n", o.Seed)
	g.printf(" <sourceExtractions>\n  <extractionInfo id=\"0\" name=\"Logical\" type=\"Logical\"/>\n </sourceExtractions>\n")

	g.printf(" <taggedFiles>\n")
	for i := 0; i < o.Files; i++ {
		g.file(i, o.DirFanout)
	}
	g.printf(" </taggedFiles>\n <decodedData>\n")

	g.printf("  <modelType type=\"Contact\">\n")
	for i := 0; i < o.Contacts; i++ {
		g.contact(i)
	}
	g.printf("  </modelType>\n  <modelType type=\"Chat\">\n")
	for i := 0; i < o.Chats; i++ {
		g.chat(i, o.MessagesPerChat)
	}
	g.printf("  </modelType>\n  <modelType type=\"Email\">\n")
	for i := 0; i < o.Emails; i++ {
		g.email(i)
	}
	g.printf("  </modelType>\n </decodedData>\n</project>\n")

	if g.err != nil {
		return g.err
	}
	return g.w.Flush()
}

type gen struct {
	w   *bufio.Writer
	rng *rand.Rand
	err error
}

func (g *gen) printf(format string, args ...any) {
	if g.err != nil {
		return
	}
	_, g.err = fmt.Fprintf(g.w, format, args...)
}

func (g *gen) timestamp() string {
	return epoch.Add(time.Duration(g.rng.Int63n(int64(365*24*time.Hour)))).Format("2006-01-02T15:04:05.000Z07:00")
}

func (g *gen) file(i, fanout int) {
	path := fmt.Sprintf("dir%d/sub%d/file%05d.bin", g.rng.Intn(fanout), g.rng.Intn(fanout), i)
	deleted := ""
	if g.rng.Intn(10) == 0 {
		deleted = ` deleted="deleted"`
	}
	g.printf("  <file fs=\"\" path=%q size=\"%d\" id=\"f-%d\" extractionId=\"0\"%s>\n", path, g.rng.Intn(1<<20), i, deleted)
	g.printf("   <metadata section=\"File\">\n    <item name=\"Local Path\"><![CDATA[files\\file%05d.bin]]></item>\n   </metadata>\n", i)
	g.printf("   <accessInfo>\n    <timestamp name=\"CreationTime\">%s</timestamp>\n   </accessInfo>\n  </file>\n", g.timestamp())
}

func (g *gen) contact(i int) {
	g.printf("   <model type=\"Contact\" id=\"c-%d\" extractionId=\"0\">\n", i)
	g.printf("    <field name=\"Name\"><value type=\"String\">Contact %d</value></field>\n", i)
	g.printf("    <multiModelField name=\"Entries\">\n")
	g.printf("     <model type=\"PhoneNumber\" id=\"c-%d-p\">\n      <field name=\"Category\"><value type=\"String\">Mobile</value></field>\n", i)
	g.printf("      <field name=\"Value\"><value type=\"String\">+55%09d</value></field>\n     </model>\n", g.rng.Intn(1e9))
	g.printf("     <model type=\"EmailAddress\" id=\"c-%d-m\">\n      <field name=\"Value\"><value type=\"String\">user%d@example.org</value></field>\n     </model>\n", i, i)
	g.printf("    </multiModelField>\n   </model>\n")
}

func (g *gen) party(id, field, role, ident string) {
	g.printf("    <modelField name=%q>\n     <model type=\"Party\" id=%q>\n", field, id)
	g.printf("      <field name=\"Identifier\"><value type=\"String\">%s</value></field>\n", ident)
	g.printf("      <field name=\"Role\"><value type=\"String\">%s</value></field>\n     </model>\n    </modelField>\n", role)
}

func (g *gen) chat(i, messages int) {
	g.printf("   <model type=\"Chat\" id=\"ch-%d\" extractionId=\"0\">\n", i)
	g.printf("    <field name=\"Source\"><value type=\"String\">WhatsApp</value></field>\n")
	g.printf("    <multiModelField name=\"Messages\">\n")
	for m := 0; m < messages; m++ {
		g.printf("     <model type=\"InstantMessage\" id=\"ch-%d-m-%d\">\n", i, m)
		g.printf("      <field name=\"TimeStamp\"><value type=\"TimeStamp\">%s</value></field>\n", g.timestamp())
		g.printf("      <field name=\"Body\"><value type=\"String\">message %d of chat %d</value></field>\n", m, i)
		g.party(fmt.Sprintf("ch-%d-m-%d-from", i, m), "From", "From", fmt.Sprintf("+55%09d", g.rng.Intn(1e9)))
		g.printf("     </model>\n")
	}
	g.printf("    </multiModelField>\n   </model>\n")
}

func (g *gen) email(i int) {
	g.printf("   <model type=\"Email\" id=\"e-%d\" extractionId=\"0\">\n", i)
	g.printf("    <field name=\"Subject\"><value type=\"String\">Subject %d</value></field>\n", i)
	g.printf("    <field name=\"Body\"><value type=\"String\">Body of email %d</value></field>\n", i)
	g.printf("    <field name=\"TimeStamp\"><value type=\"TimeStamp\">%s</value></field>\n", g.timestamp())
	g.party(fmt.Sprintf("e-%d-from", i), "From", "From", fmt.Sprintf("sender%d@example.org", i))
	g.party(fmt.Sprintf("e-%d-to", i), "To", "To", fmt.Sprintf("rcpt%d@example.org", i))
	g.printf("   </model>\n")
}
