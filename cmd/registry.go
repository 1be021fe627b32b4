package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Back up and restore the face registry",
}

var registryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the registry as JSON",
	Long: `Write the whole registry in its storage format, to stdout or a file.
The output can be imported into any backend.

Examples:
  memory-anchor registry export > backup.json
  REGISTRY_BACKEND=postgres memory-anchor registry export -o backup.json`,
	Args: cobra.NoArgs,
	RunE: runRegistryExport,
}

var registryImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Load a registry backup",
	Long: `Load a registry backup written by "registry export". Both the current
versioned format and the older plain array of records are accepted.

By default the backup replaces the registry. With --merge the people from
the backup are added and same-id people are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegistryImport,
}

func init() {
	rootCmd.AddCommand(registryCmd)
	registryCmd.AddCommand(registryExportCmd, registryImportCmd)

	registryExportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	registryImportCmd.Flags().Bool("merge", false, "Merge into the registry instead of replacing it")
}

func runRegistryExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.registry.Export()
	if err != nil {
		return fmt.Errorf("exporting registry: %w", err)
	}

	output := mustGetString(cmd, "output")
	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	fmt.Printf("Exported %s to %s\n", registry.RegisteredMessage(a.registry.Len()), output)
	return nil
}

func runRegistryImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}
	faces, err := registry.Decode(data)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	if mustGetBool(cmd, "merge") {
		for _, f := range faces {
			if err := a.registry.Put(ctx, f); err != nil {
				return fmt.Errorf("importing %s: %w", f.ID(), err)
			}
		}
	} else if err := a.registry.Replace(ctx, faces); err != nil {
		return fmt.Errorf("importing registry: %w", err)
	}

	fmt.Printf("Imported %d people. %s\n", len(faces), registry.RegisteredMessage(a.registry.Len()))
	return nil
}
