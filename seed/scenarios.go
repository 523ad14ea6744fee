package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/warp/envelope-ledger/ledger"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// ErrUnknownScenario is returned by LoadScenario for an id with no file.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario describes an embedded demo budget.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Scenarios lists the embedded budgets ordered by id.
func Scenarios() ([]Scenario, error) {
	entries, err := fs.ReadDir(scenarioFS, "scenarios")
	if err != nil {
		return nil, err
	}
	var out []Scenario
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		b, err := LoadScenario(strings.TrimSuffix(e.Name(), ".yaml"))
		if err != nil {
			return nil, err
		}
		out = append(out, Scenario{ID: b.ID, Name: b.Name, Description: b.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// LoadScenario parses the embedded budget with the given id.
func LoadScenario(id string) (*Budget, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	data, err := scenarioFS.ReadFile(path.Join("scenarios", id+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}
	if err != nil {
		return nil, err
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", id, err)
	}
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

// Resetter clears a store before a scenario is loaded.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ResetAndApply wipes the store and applies the scenario. Only for
// development and demo databases.
func ResetAndApply(ctx context.Context, svc *ledger.Service, r Resetter, id string) (*Result, error) {
	b, err := LoadScenario(id)
	if err != nil {
		return nil, err
	}
	if err := r.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	return Apply(ctx, svc, b)
}
