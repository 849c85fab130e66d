// Command reportgen writes a synthetic extraction report for load testing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/agentic-research/evidencegraph/internal/reportgen"
)

func main() {
	o := reportgen.Default
	out := flag.String("out", "report.xml", "Output report path")
	flag.Int64Var(&o.Seed, "seed", o.Seed, "Random seed")
	flag.IntVar(&o.Files, "files", o.Files, "Number of files")
	flag.IntVar(&o.Contacts, "contacts", o.Contacts, "Number of contacts")
	flag.IntVar(&o.Chats, "chats", o.Chats, "Number of chats")
	flag.IntVar(&o.MessagesPerChat, "messages", o.MessagesPerChat, "Messages per chat")
	flag.IntVar(&o.Emails, "emails", o.Emails, "Number of emails")
	flag.IntVar(&o.DirFanout, "fanout", o.DirFanout, "Folders per tree level")
	flag.Parse()

	f, err := os.Create(*out)
	if err != nil {
		fatal(err)
	}
	if err := reportgen.Write(f, o); err != nil {
		_ = f.Close()
		fatal(err)
	}
	if err := f.Close(); err != nil {
		fatal(err)
	}
	fmt.Printf("wrote %s\n", *out)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
