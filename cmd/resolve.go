package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/imagespy/rpm-registry/registry"
	"github.com/imagespy/rpm-registry/resolver"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type artifactSerialize struct {
	Kind      string `json:"kind"`
	MediaType string `json:"mediaType"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
	Path      string `json:"path,omitempty"`
}

var (
	resolveConvert string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve NAME REFERENCE",
	Short: "Resolves a tag or a digest of an image and prints the result",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, closeRunner := newResolver()
		defer closeRunner()

		return runResolve(cmd.Context(), res, cmd.OutOrStdout(), args[0], args[1], resolveConvert)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveConvert, "convert", "", "print a resolved manifest converted to docker or oci media types")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(ctx context.Context, res *resolver.Resolver, out io.Writer, name string, ref string, convert string) error {
	var conv func(*registry.Manifest) *registry.Manifest
	switch convert {
	case "":
	case "docker":
		conv = registry.ToDocker
	case "oci":
		conv = registry.ToOCI
	default:
		return errors.Errorf("unsupported conversion %q", convert)
	}

	tag, d, err := registry.ParseReference(ref)
	if err != nil {
		return err
	}

	if tag != "" {
		list, err := res.ResolveByTag(ctx, name, tag)
		if err != nil {
			return errors.Wrapf(err, "resolving %s:%s", name, tag)
		}

		return printJSON(out, list)
	}

	a, err := res.ResolveByDigest(ctx, name, d)
	if err != nil {
		return errors.Wrapf(err, "resolving %s@%s", name, d)
	}

	if conv != nil {
		if a.Kind != resolver.KindManifest {
			return errors.Errorf("%s is a %s, only manifests can be converted", d, a.Kind)
		}

		m := &registry.Manifest{}
		if err := json.Unmarshal(a.Content, m); err != nil {
			return errors.Wrapf(err, "decoding manifest %s", d)
		}

		return printJSON(out, conv(m))
	}

	return printJSON(out, &artifactSerialize{
		Kind:      a.Kind.String(),
		MediaType: a.MediaType,
		Digest:    a.Digest.String(),
		Size:      a.Size,
		Path:      a.Path,
	})
}

func printJSON(out io.Writer, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(b))
	return err
}
