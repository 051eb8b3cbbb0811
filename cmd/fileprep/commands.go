package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sunway910/api-sub001/internal/atomicfile"
	"github.com/sunway910/api-sub001/pkg/merkle"
	"github.com/sunway910/api-sub001/pkg/model"
)

func keyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "key",
		Aliases: []string{"k"},
		Usage:   "cipher key, at most 32 bytes; empty disables encryption",
		EnvVars: []string{"FILEPREP_KEY"},
	}
}

func saveDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "save-dir",
		Usage: "fragment directory (overrides the config file)",
	}
}

func manifestFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "manifest",
		Aliases: []string{"m"},
		Usage:   "manifest JSON file",
	}
}

func fidFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "fid",
		Usage: "load the manifest from the index by fid",
	}
}

func (e *env) saveDir(c *cli.Context) string { // H
	if d := c.String("save-dir"); d != "" {
		return d
	}
	return e.cfg.SaveDir
}

func processCmd() *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "prepare a file and print its manifest",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			keyFlag(),
			saveDirFlag(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write the manifest to this file instead of stdout",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: fileprep process <file>", 2)
			}
			e, err := setup(c)
			if err != nil {
				return err
			}

			m, err := e.pipe.Process(c.Context, c.Args().First(), []byte(c.String("key")), e.saveDir(c))
			if err != nil {
				return err
			}

			idx, err := e.openIndex()
			if err != nil {
				return err
			}
			if idx != nil {
				defer idx.Close()
				if err := idx.Put(m); err != nil {
					return err
				}
			}

			data, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return fmt.Errorf("fileprep: encode manifest: %w", err)
			}
			data = append(data, '\n')
			if out := c.String("out"); out != "" {
				return atomicfile.WriteFile(out, data)
			}
			_, err = c.App.Writer.Write(data)
			return err
		},
	}
}

// loadManifest reads the manifest named by --manifest or --fid.
func (e *env) loadManifest(c *cli.Context) (*model.Manifest, error) { // A
	if path := c.String("manifest"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, model.IOError("fileprep: read manifest", err)
		}
		var m model.Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf(
				"fileprep: %w",
				model.Invalidf("parse manifest %s: %v", path, err),
			)
		}
		return &m, nil
	}

	fid := c.String("fid")
	if fid == "" {
		return nil, cli.Exit("one of --manifest or --fid is required", 2)
	}
	idx, err := e.openIndex()
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, cli.Exit("--fid needs manifestDB in the config", 2)
	}
	defer idx.Close()
	return idx.Get(fid)
}

func restoreCmd() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "rebuild a file from its fragments",
		ArgsUsage: "<output file>",
		Flags:     []cli.Flag{keyFlag(), saveDirFlag(), manifestFlag(), fidFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: fileprep restore [--manifest f | --fid id] <output file>", 2)
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			m, err := e.loadManifest(c)
			if err != nil {
				return err
			}

			return atomicfile.WriteFunc(c.Args().First(), func(w io.Writer) error {
				return e.pipe.Restore(c.Context, m, []byte(c.String("key")), e.saveDir(c), w)
			})
		},
	}
}

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check that every segment of a manifest can be rebuilt",
		Flags: []cli.Flag{saveDirFlag(), manifestFlag(), fidFlag()},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			m, err := e.loadManifest(c)
			if err != nil {
				return err
			}
			report, err := e.pipe.Verify(c.Context, m, e.saveDir(c))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Recoverable || !report.FidValid {
				return cli.Exit("manifest is not recoverable", 1)
			}
			return nil
		},
	}
}

func showCmd() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "print a manifest from the index or a file",
		Flags: []cli.Flag{manifestFlag(), fidFlag()},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			m, err := e.loadManifest(c)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		},
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the fids held in the manifest index",
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			idx, err := e.openIndex()
			if err != nil {
				return err
			}
			if idx == nil {
				return cli.Exit("list needs manifestDB in the config", 2)
			}
			defer idx.Close()

			fids, err := idx.List()
			if err != nil {
				return err
			}
			for _, fid := range fids {
				fmt.Fprintln(c.App.Writer, fid)
			}
			return nil
		},
	}
}

func fidCmd() *cli.Command {
	return &cli.Command{
		Name:      "fid",
		Usage:     "compute the fid of a list of segment hashes",
		ArgsUsage: "<segment hash>...",
		Action: func(c *cli.Context) error {
			root, err := merkle.RootHex(c.Args().Slice())
			if errors.Is(err, model.ErrInvalidInput) && c.NArg() == 0 {
				return cli.Exit("usage: fileprep fid <segment hash>...", 2)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, root)
			return nil
		},
	}
}
