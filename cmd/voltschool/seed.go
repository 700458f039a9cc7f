package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"voltschool/internal/core"
	"voltschool/pkg/domain"
)

// fixtures is a seed file. Records use the same camelCase field names as the
// stored JSON rows.
type fixtures struct {
	Students  []domain.Student  `json:"students"`
	Buses     []domain.Bus      `json:"buses"`
	Incidents []domain.Incident `json:"incidents"`
}

func loadFixtures(path string) (fixtures, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied fixture path
	if err != nil {
		return fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	var doc map[string]any
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	for key := range doc {
		if !domain.CollectionName(key).Valid() {
			return fixtures{}, fmt.Errorf("parse fixtures: unknown section %q", key)
		}
	}
	// Round-trip through JSON so the domain json tags drive field names.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	var fx fixtures
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	return fx, nil
}

// seed appends fixture records without triggering incident cascades; bus
// statuses are taken as written.
func seed(ctx context.Context, svc *core.Service, fx fixtures) (int, error) {
	n := 0
	for _, b := range fx.Buses {
		if _, err := svc.AddBus(ctx, b); err != nil {
			return n, fmt.Errorf("seed bus %s: %w", b.ID, err)
		}
		n++
	}
	for _, st := range fx.Students {
		if _, err := svc.AddStudent(ctx, st); err != nil {
			return n, fmt.Errorf("seed student %s %s: %w", st.FirstName, st.LastName, err)
		}
		n++
	}
	for _, in := range fx.Incidents {
		if _, err := svc.Incidents().Add(ctx, in); err != nil {
			return n, fmt.Errorf("seed incident %s: %w", in.ID, err)
		}
		n++
	}
	return n, nil
}

func newSeedCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Append fixture records to the collections",
		Long: `Append students, buses and incidents from a YAML file.

Records without an id get the next generated id. Incidents are stored as
written; bus statuses are not cascaded.

Example fixture:
  buses:
    - capacity: 40
      driver: {name: Sam Reed, phone: 555-0100}
      route: {name: North Loop, schools: [Hamilton Primary School]}
  students:
    - firstName: Ana
      lastName: Lopez
      school: Hamilton Primary School
      busId: B-101`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			fx, err := loadFixtures(args[0])
			if err != nil {
				return usageError{err}
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(context.Background(), a, &err)
			a.svc.Load(ctx)
			n, err := seed(ctx, a.svc, fx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records\n", n)
			return err
		},
	}
}
