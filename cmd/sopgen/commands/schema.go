package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/features"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the result schema",
		Long: `Print the JSON Schema every result is validated against, followed by
the field description given to the model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := schema.NewSchema[features.Features](schema.WithDescription(classify.SchemaDescription))
			if err != nil {
				return err
			}
			js, err := s.ToJSONSchema()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(js, "", "  ")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, string(data))
			if jsonOnly, _ := cmd.Flags().GetBool("json"); jsonOnly {
				return nil
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, s.ToPromptDescription())
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print only the JSON Schema")
	return cmd
}
