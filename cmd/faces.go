package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Inspect and manage enrolled people",
}

var facesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled people",
	Long: `List enrolled people in enrollment order.

Examples:
  memory-anchor faces list
  memory-anchor faces list --query sar
  memory-anchor faces list --json`,
	Args: cobra.NoArgs,
	RunE: runFacesList,
}

var facesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one person's profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesShow,
}

var facesRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a person and their photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesRemove,
}

var facesSimilarCmd = &cobra.Command{
	Use:   "similar [id]",
	Short: "List enrolled people whose face resembles this person",
	Long: `List other enrolled people whose face lies within the match threshold of
this person's face. Two entries for the same person, or relatives that
look alike, show up here and may be confused during scanning.`,
	Args: cobra.ExactArgs(1),
	RunE: runFacesSimilar,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesListCmd, facesShowCmd, facesRemoveCmd, facesSimilarCmd)

	facesListCmd.Flags().Bool("json", false, "Output as JSON")
	facesListCmd.Flags().String("query", "", "Only people whose name matches")
	facesShowCmd.Flags().Bool("json", false, "Output as JSON")
	facesSimilarCmd.Flags().Int("limit", 5, "Maximum number of people to list")
}

// faceSummary is the JSON form of a person without the embedding.
type faceSummary struct {
	registry.Profile
	ImageRef     string `json:"imageRef,omitempty"`
	EmbeddingDim int    `json:"embeddingDim"`
	EnrolledAt   string `json:"enrolledAt,omitempty"`
}

func summarize(f registry.EnrolledFace) faceSummary {
	s := faceSummary{Profile: f.Profile, ImageRef: f.ImageRef, EmbeddingDim: len(f.Embedding)}
	if !f.EnrolledAt.IsZero() {
		s.EnrolledAt = f.EnrolledAt.Format("2006-01-02 15:04")
	}
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runFacesList(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	query := mustGetString(cmd, "query")

	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	faces := a.registry.All()
	if query != "" {
		faces = a.registry.FindByName(query)
	}

	if jsonOutput {
		out := make([]faceSummary, 0, len(faces))
		for _, f := range faces {
			out = append(out, summarize(f))
		}
		return printJSON(out)
	}

	fmt.Println(registry.RegisteredMessage(a.registry.Len()))
	if len(faces) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tRELATION\tLAST VISIT\tENROLLED")
	for _, f := range faces {
		s := summarize(f)
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n", s.ID, s.Avatar, s.Name, s.Relation, s.LastVisit, s.EnrolledAt)
	}
	return w.Flush()
}

func runFacesShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	face, ok := a.registry.Get(args[0])
	if !ok {
		return fmt.Errorf("no person with id %s", args[0])
	}
	if mustGetBool(cmd, "json") {
		return printJSON(summarize(face))
	}

	p := face.Profile
	fmt.Printf("%s %s\n", p.Avatar, p.Name)
	fmt.Printf("  ID:           %s\n", p.ID)
	fmt.Printf("  Relation:     %s\n", p.Relation)
	if p.Age != nil {
		fmt.Printf("  Age:          %d\n", *p.Age)
	}
	fmt.Printf("  Last visit:   %s\n", p.LastVisit)
	fmt.Printf("  Last talk:    %s\n", p.ConversationSummary)
	fmt.Printf("  News:         %s\n", p.CurrentUpdate)
	if face.ImageRef != "" {
		fmt.Printf("  Photo:        %s\n", face.ImageRef)
	}
	fmt.Printf("  Embedding:    %d dimensions\n", len(face.Embedding))
	return nil
}

func runFacesRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	face, ok := a.registry.Get(args[0])
	if !ok {
		fmt.Printf("No person with id %s, nothing to remove\n", args[0])
		return nil
	}
	if err := a.enrollment.Remove(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s (%s). %s\n", face.Profile.Name, face.ID(), registry.RegisteredMessage(a.registry.Len()))
	return nil
}

func runFacesSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	dups, err := a.enrollment.Similar(args[0], mustGetInt(cmd, "limit"))
	if err != nil {
		return err
	}
	if len(dups) == 0 {
		fmt.Printf("Nobody resembles %s within distance %.2f\n", args[0], a.cfg.Matching.Threshold)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDISTANCE")
	for _, d := range dups {
		fmt.Fprintf(w, "%s\t%s\t%.4f\n", d.ID, d.Name, d.Distance)
	}
	return w.Flush()
}
