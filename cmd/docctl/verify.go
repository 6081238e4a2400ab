package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"signeddoc/pkg/envelope"
	"signeddoc/pkg/problems"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Decode a document envelope and verify its signatures",
	Long: `Verify decodes a signed document envelope, reports every structural
problem found, and checks each signature against the public key embedded
in its key ID. Store-dependent rules (references, versioning, chains)
need the validation service and are not checked here.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		rep := problems.New()
		doc, err := envelope.Decode(raw, rep)
		if err != nil {
			fmt.Printf("%s %v\n", red("FAIL"), err)
			return fmt.Errorf("envelope does not decode")
		}

		failed := false
		for _, e := range rep.Entries() {
			fmt.Printf("%s %s\n", red("FAIL"), e)
			failed = true
		}

		sigs := doc.Signatures()
		if len(sigs) == 0 {
			fmt.Printf("%s document is unsigned\n", red("FAIL"))
			failed = true
		}
		for _, sig := range sigs {
			if err := doc.VerifySignature(sig, sig.KeyID.PublicKey); err != nil {
				fmt.Printf("%s signature by %s: %v\n", red("FAIL"), sig.KeyID.ShortID(), err)
				failed = true
				continue
			}
			fmt.Printf("%s signature by %s (%s)\n", green("PASS"), sig.KeyID.ShortID(), sig.KeyID.Role)
		}

		if failed {
			return fmt.Errorf("verification failed")
		}
		fmt.Printf("%s %s\n", green("PASS"), args[0])
		return nil
	},
}
