package desctl

import (
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

//go:embed modelTemplate.txt
var modelTemplate string

var componentCmd = &cobra.Command{
	Use:   "component",
	Short: "Scaffold a new client-process model package.",
	Long:  "`component --create [Name]` creates a new package implementing des.Client.",
	RunE:  createComponent,
}

func init() {
	rootCmd.AddCommand(componentCmd)
	componentCmd.Flags().String("create", "", "name of the model package to create")
}

func createComponent(cmd *cobra.Command, _ []string) error {
	name, err := cmd.Flags().GetString("create")
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("desctl component: --create NAME is required")
	}

	if !inGitRepo() {
		return fmt.Errorf("desctl component: must be run inside a git repository")
	}

	if err := os.MkdirAll(name, 0o755); err != nil {
		return fmt.Errorf("desctl component: %w", err)
	}

	content := strings.ReplaceAll(modelTemplate, "{{packageName}}", name)
	path := filepath.Join(name, "model.go")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("desctl component: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func inGitRepo() bool {
	c := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	out, err := c.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) == "true"
}
