package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kortex/kortex/internal/skills"
)

var (
	skillsListJSON bool
	skillsListAll  bool
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Inspect and manage the skill catalog",
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		listing := newCatalog(cfg).List(skillsListAll)
		out := cmd.OutOrStdout()
		if skillsListJSON {
			data, err := json.MarshalIndent(listing, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		printHeader(out, fmt.Sprintf("Skills (%d)", len(listing)))
		for _, l := range listing {
			state := color.GreenString("enabled")
			if !l.Enabled {
				state = color.YellowString("disabled")
			}
			fmt.Fprintf(out, "%-28s %-9s %s\n", l.Name, state, l.Description)
		}
		return nil
	},
}

var skillsEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSkillEnabled(cmd, args[0], true)
	},
}

var skillsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSkillEnabled(cmd, args[0], false)
	},
}

var skillsIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the skill index from the skills directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir := cfg.ResolvePath(cfg.Paths.SkillsDir)
		records, err := skills.BuildIndex(dir)
		if err != nil {
			return formatSkillError("index_failed", err, "check paths.skillsDir in the config")
		}
		path := cfg.ResolvePath(cfg.Paths.SkillsIndex)
		if err := skills.WriteIndex(path, records); err != nil {
			return formatSkillError("index_write_failed", err, "check that the index path is writable")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d skills into %s\n", len(records), path)
		return nil
	},
}

func init() {
	skillsListCmd.Flags().BoolVar(&skillsListJSON, "json", false, "Output JSON")
	skillsListCmd.Flags().BoolVar(&skillsListAll, "all", true, "Include disabled skills")

	skillsCmd.AddCommand(skillsListCmd)
	skillsCmd.AddCommand(skillsEnableCmd)
	skillsCmd.AddCommand(skillsDisableCmd)
	skillsCmd.AddCommand(skillsIndexCmd)
}

func setSkillEnabled(cmd *cobra.Command, name string, enabled bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := newCatalog(cfg).SetEnabled(name, enabled); err != nil {
		return formatSkillError("toggle_failed", err, "check paths.skillsConfig in the config")
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Skill %s %s\n", name, state)
	return nil
}

func formatSkillError(code string, err error, remediation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %v. remediation: %s", strings.ToUpper(strings.TrimSpace(code)), err, remediation)
}
