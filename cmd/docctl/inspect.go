package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"signeddoc/pkg/dochash"
	"signeddoc/pkg/doctypes"
	"signeddoc/pkg/envelope"
	"signeddoc/pkg/metadata"
	"signeddoc/pkg/problems"
	"signeddoc/pkg/uuidx"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print the metadata of a document envelope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		rep := problems.New()
		doc, err := envelope.Decode(raw, rep)
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		m := doc.Meta

		typeName := "unknown"
		if def, ok := doctypes.Lookup(m.PrimaryType()); ok {
			typeName = def.Name
		}
		fmt.Printf("%s %s (%s)\n", bold("type:"), typeName, m.PrimaryType())
		fmt.Printf("%s %s\n", bold("id:  "), m.ID)
		fmt.Printf("%s %s (%s)\n", bold("ver: "), m.Ver, uuidx.Time(m.Ver).Format("2006-01-02 15:04:05.000"))
		fmt.Printf("%s %s", bold("body:"), m.ContentType)
		if m.ContentEncoding != "" {
			fmt.Printf(" (%s)", m.ContentEncoding)
		}
		fmt.Println()

		printRefs := func(name string, refs metadata.DocumentRefs) {
			for _, r := range refs {
				fmt.Printf("%s %s\n", bold(name+":"), r.Key())
			}
		}
		printRefs("ref", m.Ref)
		printRefs("template", m.Template)
		printRefs("reply", m.Reply)
		printRefs("parameters", m.Parameters)
		if m.Section != "" {
			fmt.Printf("%s %s\n", bold("section:"), m.Section)
		}
		for _, c := range m.Collaborators {
			fmt.Printf("%s %s\n", bold("collaborator:"), c)
		}
		if m.Revocations != nil {
			fmt.Printf("%s %s\n", bold("revocations:"), m.Revocations)
		}
		if m.Chain != nil {
			fmt.Printf("%s %s\n", bold("chain:"), m.Chain)
		}
		for _, kid := range doc.Authors() {
			fmt.Printf("%s %s (%s)\n", bold("signer:"), kid.ShortID(), kid.Role)
		}

		c, err := dochash.CIDOf(doc.Bytes())
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", bold("cid: "), c)

		for _, e := range rep.Entries() {
			fmt.Printf("%s %s\n", yellow("warn:"), e)
		}
		return nil
	},
}
