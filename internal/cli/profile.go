package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/kilupskalvis/ure/internal/core"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved searches",
	Long:  `Save, list, export and import search profiles. Profiles belong to the --actor.`,
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <name> <term> [replacement]",
	Short: "Save a search as a profile",
	Args:  cobra.RangeArgs(2, 3),
	Run:   runProfileSave,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	Run:   runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a saved profile",
	Args:  cobra.ExactArgs(1),
	Run:   runProfileShow,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved profile",
	Args:  cobra.ExactArgs(1),
	Run:   runProfileDelete,
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all profiles as YAML",
	Args:  cobra.NoArgs,
	Run:   runProfileExport,
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import profiles from a YAML file",
	Args:  cobra.ExactArgs(1),
	Run:   runProfileImport,
}

var (
	profileFlags  specFlags
	profileOutput string
)

// profileFile is the YAML layout used by export and import
type profileFile struct {
	Profiles []*models.Profile `yaml:"profiles"`
}

func init() {
	profileFlags.register(profileSaveCmd, false)
	profileExportCmd.Flags().StringVarP(&profileOutput, "output", "o", "", "Write to a file instead of stdout")

	profileCmd.AddCommand(profileSaveCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileImportCmd)
}

func runProfileSave(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	name := strings.TrimSpace(args[0])
	spec, err := profileFlags.buildSpec(c, cmd, args[1:])
	if err != nil {
		exitError("%v", err)
	}
	if err := validateProfile(name, spec); err != nil {
		exitError("%v", err)
	}

	p := &models.Profile{Name: name, ActorID: actorID, Spec: spec}
	if existing, err := c.Store.GetProfile(c.Ctx, actorID, name); err == nil {
		p.CreatedAt = existing.CreatedAt
	}
	if err := c.Store.SaveProfile(c.Ctx, p); err != nil {
		exitError("%v", err)
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Saved profile %q\n", name)
}

func validateProfile(name string, spec models.SearchSpec) error {
	if name == "" {
		return errors.New("profile name is required")
	}
	if _, err := core.ValidateSpec(spec); err != nil {
		return errors.Errorf("profile %q: %w", name, err)
	}
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	profiles, err := c.Store.ListProfiles(c.Ctx, actorID)
	if err != nil {
		exitError("failed to list profiles: %v", err)
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No saved profiles")
		return
	}

	data := pterm.TableData{{"Name", "Term", "Replacement", "Scope", "Updated"}}
	for _, p := range profiles {
		data = append(data, []string{
			p.Name,
			truncate(p.Spec.Term, 30),
			truncate(p.Spec.Replacement, 30),
			string(p.Spec.Scope),
			p.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		exitError("failed to render profiles: %v", err)
	}
	fmt.Fprintln(out, table)
}

func getProfile(c *cmdContext, name string) *models.Profile {
	p, err := c.Store.GetProfile(c.Ctx, actorID, name)
	if errors.Is(err, store.ErrProfileNotFound) {
		exitError("profile %q not found", name)
	}
	if err != nil {
		exitError("failed to read profile: %v", err)
	}
	return p
}

func runProfileShow(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	p := getProfile(c, args[0])
	if err := writeYAML(cmd.OutOrStdout(), p); err != nil {
		exitError("%v", err)
	}
}

func runProfileDelete(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	err := c.Store.DeleteProfile(c.Ctx, actorID, args[0])
	if errors.Is(err, store.ErrProfileNotFound) {
		exitError("profile %q not found", args[0])
	}
	if err != nil {
		exitError("failed to delete profile: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %q\n", args[0])
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Errorf("failed to encode YAML: %w", err)
	}
	return errors.WithStack(enc.Close())
}

func runProfileExport(cmd *cobra.Command, args []string) {
	c := initContext(cmd)
	defer c.Close()

	profiles, err := c.Store.ListProfiles(c.Ctx, actorID)
	if err != nil {
		exitError("failed to list profiles: %v", err)
	}

	var buf bytes.Buffer
	if err := writeYAML(&buf, profileFile{Profiles: profiles}); err != nil {
		exitError("%v", err)
	}

	if profileOutput == "" {
		cmd.OutOrStdout().Write(buf.Bytes())
		return
	}
	if err := os.WriteFile(profileOutput, buf.Bytes(), 0o644); err != nil {
		exitError("failed to write %s: %v", profileOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d profile(s) to %s\n", len(profiles), profileOutput)
}

// readProfiles parses and validates an export file
func readProfiles(data []byte) ([]*models.Profile, error) {
	var file profileFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.Errorf("failed to parse profiles: %w", err)
	}

	var errs []error
	for i, p := range file.Profiles {
		if p == nil {
			errs = append(errs, errors.Errorf("profile %d is empty", i+1))
			continue
		}
		p.Name = strings.TrimSpace(p.Name)
		if err := validateProfile(p.Name, p.Spec); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return file.Profiles, nil
}

func runProfileImport(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError("failed to read %s: %v", args[0], err)
	}
	profiles, err := readProfiles(data)
	if err != nil {
		exitError("%v", err)
	}

	c := initContext(cmd)
	defer c.Close()

	for _, p := range profiles {
		p.ActorID = actorID
		if err := c.Store.SaveProfile(c.Ctx, p); err != nil {
			exitError("%v", err)
		}
	}
	color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Imported %d profile(s)\n", len(profiles))
}
