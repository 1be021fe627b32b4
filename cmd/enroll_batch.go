package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/memory-anchor/internal/config"
	"github.com/kozaktomas/memory-anchor/internal/enrollment"
	"github.com/kozaktomas/memory-anchor/internal/registry"
)

var enrollBatchCmd = &cobra.Command{
	Use:   "batch [manifest.yaml]",
	Short: "Enroll several people from a YAML manifest",
	Long: `Enroll everyone listed in a YAML manifest. Image paths are relative to
the manifest. People that fail (no face, missing file) are reported and
skipped; the others are enrolled.

Manifest example:
  people:
    - image: photos/sarah.jpg
      id: person_sarah
      name: Sarah
      relation: Daughter
      age: 34
      lastVisit: Last Sunday
      conversationSummary: Talked about her garden
      currentUpdate: Started a new job
      avatar: "👩"
    - image: photos/tom.jpg
      name: Tom
      relation: Grandson`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrollBatch,
}

func init() {
	enrollCmd.AddCommand(enrollBatchCmd)

	enrollBatchCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// batchManifest is the YAML manifest format.
type batchManifest struct {
	People []batchPerson `yaml:"people"`
}

type batchPerson struct {
	Image               string `yaml:"image"`
	ID                  string `yaml:"id"`
	Name                string `yaml:"name"`
	Relation            string `yaml:"relation"`
	Age                 *int   `yaml:"age"`
	LastVisit           string `yaml:"lastVisit"`
	ConversationSummary string `yaml:"conversationSummary"`
	CurrentUpdate       string `yaml:"currentUpdate"`
	Avatar              string `yaml:"avatar"`
}

func (p batchPerson) profile() registry.Profile {
	return registry.Profile{
		ID:                  p.ID,
		Name:                p.Name,
		Relation:            p.Relation,
		Age:                 p.Age,
		LastVisit:           p.LastVisit,
		ConversationSummary: p.ConversationSummary,
		CurrentUpdate:       p.CurrentUpdate,
		Avatar:              p.Avatar,
	}
}

// loadManifest parses the manifest and resolves image paths against its directory.
func loadManifest(path string) (*batchManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m batchManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.People) == 0 {
		return nil, errors.New("manifest lists no people")
	}
	base := filepath.Dir(path)
	for i := range m.People {
		if img := m.People[i].Image; img != "" && !filepath.IsAbs(img) {
			m.People[i].Image = filepath.Join(base, img)
		}
	}
	return &m, nil
}

// batchResult is one manifest entry outcome.
type batchResult struct {
	Image    string                 `json:"image"`
	Name     string                 `json:"name"`
	ID       string                 `json:"id,omitempty"`
	Replaced bool                   `json:"replaced,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Similar  []enrollment.Duplicate `json:"similar,omitempty"`
}

// enrollPerson enrolls one manifest entry.
func enrollPerson(ctx context.Context, svc *enrollment.Service, p batchPerson) batchResult {
	r := batchResult{Image: p.Image, Name: p.Name}
	if p.Image == "" {
		r.Error = "image path missing"
		return r
	}
	image, err := os.ReadFile(p.Image)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	res, err := svc.Enroll(ctx, image, p.profile())
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.ID = res.Face.ID()
	r.Replaced = res.Replaced
	r.Similar = res.PossibleDuplicateOf
	return r
}

func runEnrollBatch(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	manifest, err := loadManifest(args[0])
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, config.Load())
	if err != nil {
		return err
	}
	defer a.Close()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(manifest.People),
			progressbar.OptionSetDescription("Enrolling"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("people"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		)
	}

	results := make([]batchResult, 0, len(manifest.People))
	failed := 0
	for _, p := range manifest.People {
		r := enrollPerson(ctx, a.enrollment, p)
		if r.Error != "" {
			failed++
		}
		results = append(results, r)
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Println()
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Printf("  FAILED  %s (%s): %s\n", r.Name, r.Image, r.Error)
		case r.Replaced:
			fmt.Printf("  updated %s as %s\n", r.Name, r.ID)
		default:
			fmt.Printf("  added   %s as %s\n", r.Name, r.ID)
		}
		for _, d := range r.Similar {
			fmt.Printf("          looks like %s (%s), distance %.3f\n", d.Name, d.ID, d.Distance)
		}
	}
	fmt.Printf("\n%d enrolled, %d failed. %s\n", len(results)-failed, failed, registry.RegisteredMessage(a.registry.Len()))
	return nil
}
