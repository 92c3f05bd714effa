package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-blob/pkg/simpleblob"
	"github.com/tendant/simple-blob/pkg/simpleblob/api"
)

func location(flags *Flags, file string) (simpleblob.Location, error) {
	identity, err := api.ParseFile(file)
	if err != nil {
		return simpleblob.Location{}, err
	}
	filePath := flags.FilePath
	if filePath == "" {
		filePath = "/" + file
	}
	return simpleblob.Location{BlobIdentity: identity, FilePath: filePath}, nil
}

func newUploadCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> [source]",
		Short: "Upload a local file (or stdin) as a blob",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location(flags, args[0])
			if err != nil {
				return err
			}

			var source io.Reader = cmd.InOrStdin()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				source = f
			}

			n, err := provider().Upload(cmd.Context(), loc, source)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", args[0], n)
			return nil
		},
	}
}

func newDownloadCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "download <file> [destination]",
		Short: "Download a blob to a local file (or stdout)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location(flags, args[0])
			if err != nil {
				return err
			}

			reader, ok := provider().GetDownloadStream(cmd.Context(), loc)
			if !ok {
				return fmt.Errorf("blob %s not found", args[0])
			}
			defer reader.Close()

			var dst io.Writer = cmd.OutOrStdout()
			if len(args) == 2 && args[1] != "-" {
				f, err := os.Create(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}

			_, err = io.Copy(dst, reader)
			return err
		},
	}
}

func newDeleteCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <file>",
		Short: "Delete a blob; deleting a missing blob succeeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location(flags, args[0])
			if err != nil {
				return err
			}
			if err := provider().Delete(cmd.Context(), loc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func newExistsCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "exists <file>",
		Short: "Print whether a blob exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location(flags, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), provider().Exists(cmd.Context(), loc))
			return nil
		},
	}
}

func newURLCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "url <file>",
		Short: "Print the CDN URL of a blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location(flags, args[0])
			if err != nil {
				return err
			}
			url, err := provider().GetURL(cmd.Context(), loc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

func newCopyCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <source> <destination>",
		Short: "Copy a blob",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst, err := locationPair(flags, args)
			if err != nil {
				return err
			}
			if err := provider().Copy(cmd.Context(), src, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "copied %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newMoveCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <source> <destination>",
		Short: "Move a blob; the source is kept if the copy fails",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst, err := locationPair(flags, args)
			if err != nil {
				return err
			}
			if err := provider().Move(cmd.Context(), src, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s\n", args[0], args[1])
			return nil
		},
	}
}

func newPropsCmd(provider func() simpleblob.Provider, flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "props <file>",
		Short: "Print the properties of a blob as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := location(flags, args[0])
			if err != nil {
				return err
			}
			props, err := provider().GetProperties(cmd.Context(), loc)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(props)
		},
	}
}

func locationPair(flags *Flags, args []string) (simpleblob.Location, simpleblob.Location, error) {
	src, err := location(flags, args[0])
	if err != nil {
		return simpleblob.Location{}, simpleblob.Location{}, err
	}
	dst, err := location(&Flags{}, args[1])
	if err != nil {
		return simpleblob.Location{}, simpleblob.Location{}, err
	}
	return src, dst, nil
}
