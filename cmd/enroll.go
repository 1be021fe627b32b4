package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/enrollment"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image]",
	Short: "Enroll a person from a photo",
	Long: `Enroll a person from a photo showing their face. The photo should contain
exactly one clearly visible face; when several are found the largest, most
confident one is used.

Enrolling again with the same --id replaces the stored face and profile.

Examples:
  memory-anchor enroll sarah.jpg --name Sarah --relation Daughter --age 34 \
      --last-visit "Last Sunday" --summary "Talked about her garden" \
      --update "Started a new job" --avatar "👩"

  # Replace Sarah's photo
  memory-anchor enroll sarah-new.jpg --id person_sarah --name Sarah`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Person id (generated when empty)")
	enrollCmd.Flags().String("name", "", "Name (required)")
	enrollCmd.Flags().String("relation", "", "Relation, e.g. Daughter")
	enrollCmd.Flags().Int("age", -1, "Age (omit when unknown)")
	enrollCmd.Flags().String("last-visit", "", "When they visited last")
	enrollCmd.Flags().String("summary", "", "What you talked about last time")
	enrollCmd.Flags().String("update", "", "News from their life")
	enrollCmd.Flags().String("avatar", "", "Emoji shown next to the name")
}

func profileFromFlags(cmd *cobra.Command) registry.Profile {
	p := registry.Profile{
		ID:                  mustGetString(cmd, "id"),
		Name:                mustGetString(cmd, "name"),
		Relation:            mustGetString(cmd, "relation"),
		LastVisit:           mustGetString(cmd, "last-visit"),
		ConversationSummary: mustGetString(cmd, "summary"),
		CurrentUpdate:       mustGetString(cmd, "update"),
		Avatar:              mustGetString(cmd, "avatar"),
	}
	if age := mustGetInt(cmd, "age"); age >= 0 {
		p.Age = &age
	}
	return p
}

func runEnroll(cmd *cobra.Command, args []string) error {
	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.enrollment.Enroll(ctx, image, profileFromFlags(cmd))
	if errors.Is(err, enrollment.ErrNoFaceDetected) {
		return fmt.Errorf("no face found in %s, please use a clearer photo", args[0])
	}
	if err != nil {
		return err
	}

	printEnrollResult(res)
	fmt.Println(registry.RegisteredMessage(a.registry.Len()))
	return nil
}

func printEnrollResult(res *enrollment.Result) {
	p := res.Face.Profile
	verb := "Enrolled"
	if res.Replaced {
		verb = "Updated"
	}
	fmt.Printf("%s %s %s (%s) as %s\n", verb, p.Avatar, p.Name, p.Relation, p.ID)
	for _, d := range res.PossibleDuplicateOf {
		fmt.Printf("  Warning: looks like %s (%s), distance %.3f\n", d.Name, d.ID, d.Distance)
	}
}
