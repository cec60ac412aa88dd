package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/funnel/internal/compiler"
	"github.com/aretw0/funnel/pkg/domain"
	"github.com/aretw0/funnel/pkg/dsl"
	"gopkg.in/yaml.v3"
)

// SampleFunnel is the funnel written by Scaffold: a welcome, an offer, a
// day-long pause for visitors who hesitate and a payment.
func SampleFunnel(id string) domain.FunnelDefinition {
	b := dsl.New(id).Name("Sample funnel")
	b.Add("welcome").Message("Welcome! Let me show you what we have.")
	b.Add("offer").Buttons("Want the full course?").
		Choice("Buy now", "checkout").
		Choice("Not now", "later")
	b.Add("later").Delay(24 * 60 * 60)
	b.Add("reminder").Message("Still thinking? The offer is waiting for you.")
	b.Add("checkout").Payment("Full course", 990, "RUB")
	b.Add("thanks").Message("Thank you! Your access is on its way.")
	return b.Definition()
}

// Scaffold writes the sample funnel to <dir>/<id>.yaml and returns the path.
// An existing file is never overwritten.
func Scaffold(dir, id string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, id+".yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	data, err := yaml.Marshal(compiler.Flatten(SampleFunnel(id)))
	if err != nil {
		return "", fmt.Errorf("encode funnel: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
