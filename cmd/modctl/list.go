// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/modctl/modctl/pkg/modmanifest"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"

	// maxLibraryColumn caps the LIBRARIES cell of the text table.
	maxLibraryColumn = 48
)

type (
	// modView is the machine-readable shape of one installed mod.
	modView struct {
		ID           string   `json:"id" yaml:"id" toml:"id"`
		Name         string   `json:"name" yaml:"name" toml:"name"`
		Version      string   `json:"version" yaml:"version" toml:"version"`
		GameID       string   `json:"gameId" yaml:"gameId" toml:"gameId"`
		GameVersion  string   `json:"gameVersion,omitempty" yaml:"gameVersion,omitempty" toml:"gameVersion,omitempty"`
		ModFiles     []string `json:"modFiles" yaml:"modFiles" toml:"modFiles"`
		LibraryFiles []string `json:"libraryFiles" yaml:"libraryFiles" toml:"libraryFiles"`
	}

	// modListDocument wraps the list for TOML, which has no top-level arrays.
	modListDocument struct {
		Mods []modView `toml:"mods"`
	}
)

func newListCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var output string

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed mods",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(output); err != nil {
				return err
			}
			s, err := app.openSession(cmd.Context(), flags)
			if err != nil {
				return fail(cmd, app.stderr, err, flags.verbose, "list mods", "")
			}
			defer s.Close()

			return writeModList(app.stdout, s.manager.Installed(), output)
		},
	}
	listCmd.Flags().StringVarP(&output, "output", "o", formatText, "output format (text, json, yaml, toml)")
	_ = listCmd.RegisterFlagCompletionFunc("output", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{formatText, formatJSON, formatYAML, formatTOML}, cobra.ShellCompDirectiveNoFileComp
	})

	return listCmd
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML, formatTOML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (valid: text, json, yaml, toml)", format)
	}
}

func toView(m *modmanifest.Manifest) modView {
	return modView{
		ID:           m.ID,
		Name:         m.Name,
		Version:      m.Version,
		GameID:       m.GameID,
		GameVersion:  m.GameVersion,
		ModFiles:     append([]string{}, m.ModFiles...),
		LibraryFiles: append([]string{}, m.LibraryFiles...),
	}
}

// writeModList renders installed mods in format.
func writeModList(w io.Writer, installed []*modmanifest.Manifest, format string) error {
	views := make([]modView, 0, len(installed))
	for _, m := range installed {
		views = append(views, toView(m))
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	case formatTOML:
		return toml.NewEncoder(w).Encode(modListDocument{Mods: views})
	case formatText:
		return writeModTable(w, views)
	default:
		return validateFormat(format)
	}
}

func writeModTable(w io.Writer, views []modView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("No mods installed."))
		return err
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{v.ID, v.Name, v.Version, libraryCell(v.LibraryFiles)})
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("ID", "NAME", "VERSION", "LIBRARIES").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func libraryCell(libs []string) string {
	if len(libs) == 0 {
		return "-"
	}
	return runewidth.Truncate(strings.Join(libs, ", "), maxLibraryColumn, "…")
}
