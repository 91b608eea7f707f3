package cli

import (
	"strings"

	"github.com/kilupskalvis/ure/internal/config"
	"github.com/kilupskalvis/ure/internal/models"
	"github.com/kilupskalvis/ure/internal/store"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
)

// specFlags are the search flags shared by search, replace and profile save
type specFlags struct {
	scope         string
	types         string
	tables        string
	caseSensitive bool
	regex         bool
	profile       string
}

func (f *specFlags) register(cmd *cobra.Command, withProfile bool) {
	cmd.Flags().StringVar(&f.scope, "scope", "content", "Fields to search: content, meta, structured or all")
	cmd.Flags().StringVar(&f.types, "type", "", "Comma-separated record types (default from config, e.g. post,page)")
	cmd.Flags().StringVar(&f.tables, "tables", "", "Comma-separated tables to search row by row (implies --scope all)")
	cmd.Flags().BoolVar(&f.caseSensitive, "case-sensitive", false, "Match case exactly")
	cmd.Flags().BoolVar(&f.regex, "regex", false, "Treat the term as a regular expression")
	if withProfile {
		cmd.Flags().StringVar(&f.profile, "profile", "", "Start from a saved profile; explicit flags override it")
	}
}

// args requires n positional arguments unless a profile supplies them
func (f *specFlags) args(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if f.profile != "" {
			return cobra.MaximumNArgs(n)(cmd, args)
		}
		return cobra.ExactArgs(n)(cmd, args)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// buildSpec assembles a SearchSpec from a saved profile, the config defaults
// and the flags the user actually set
func (f *specFlags) buildSpec(c *cmdContext, cmd *cobra.Command, args []string) (models.SearchSpec, error) {
	spec := models.SearchSpec{Scope: models.ScopeContent}

	if f.profile != "" {
		p, err := c.Store.GetProfile(c.Ctx, actorID, f.profile)
		if errors.Is(err, store.ErrProfileNotFound) {
			return spec, errors.Errorf("profile %q not found", f.profile)
		}
		if err != nil {
			return spec, err
		}
		spec = p.Spec
	} else {
		spec.RecordTypes = defaultTypes(c.Config)
	}

	if len(args) > 0 {
		spec.Term = args[0]
	}
	if len(args) > 1 {
		spec.Replacement = args[1]
	}

	flags := cmd.Flags()
	if flags.Changed("scope") || f.profile == "" {
		spec.Scope = models.ParseScope(f.scope)
	}
	if flags.Changed("type") {
		spec.RecordTypes = splitList(f.types)
	}
	if flags.Changed("tables") {
		spec.Tables = splitList(f.tables)
	}
	if flags.Changed("case-sensitive") {
		spec.CaseSensitive = f.caseSensitive
	}
	if flags.Changed("regex") {
		spec.UseRegex = f.regex
	}
	if spec.DatabaseMode() {
		spec.Scope = models.ScopeAll
	}
	return spec, nil
}

func defaultTypes(cfg *config.Config) []string {
	return append([]string(nil), cfg.Search.RecordTypes...)
}
