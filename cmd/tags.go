package cmd

import (
	"context"
	"io"

	"github.com/imagespy/rpm-registry/registry"
	"github.com/imagespy/rpm-registry/resolver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags NAME",
	Short: "Lists the tags of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, closeRunner := newResolver()
		defer closeRunner()

		return runTags(cmd.Context(), res, cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}

func runTags(ctx context.Context, res *resolver.Resolver, out io.Writer, name string) error {
	tags, err := res.ListTags(ctx, name)
	if err != nil {
		return errors.Wrapf(err, "listing tags of %s", name)
	}

	return printJSON(out, &registry.TagList{Name: name, Tags: tags})
}
