package providers

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"medialib/config"
)

// Descriptor is a static registry entry: a provider's name, its capabilities
// and a constructor.
type Descriptor struct {
	Name         string
	Capabilities Capabilities
	New          func(Options) Provider
}

// Builtin returns the descriptors of every provider compiled into the binary.
func Builtin() []Descriptor {
	return []Descriptor{
		{
			Name:         "Jackett",
			Capabilities: (&JackettProvider{}).Capabilities(),
			New:          func(o Options) Provider { return NewJackettProvider(o) },
		},
		{
			Name:         "Nyaa",
			Capabilities: (&NyaaProvider{}).Capabilities(),
			New:          func(o Options) Provider { return NewNyaaProvider(o) },
		},
		{
			Name:         "YTS",
			Capabilities: (&YTSProvider{}).Capabilities(),
			New:          func(o Options) Provider { return NewYTSProvider(o) },
		},
	}
}

// Lookup finds a builtin descriptor by case-insensitive name.
func Lookup(name string) (Descriptor, bool) {
	for _, d := range Builtin() {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Registry holds the provider instances enabled in the settings.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds providers from the enabled entries of cfgs. Unknown names
// and Jackett entries without an API key are skipped.
func NewRegistry(cfgs []config.ProviderConfig) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, pc := range cfgs {
		if !pc.Enabled {
			continue
		}
		desc, ok := Lookup(pc.Name)
		if !ok {
			log.Printf("[providers] Unknown provider: %s", pc.Name)
			continue
		}
		if !desc.Capabilities.Public && strings.TrimSpace(pc.APIKey) == "" {
			log.Printf("[providers] Skipping %s: missing API key", desc.Name)
			continue
		}
		p := desc.New(Options{
			BaseURL:     pc.URL,
			APIKey:      pc.APIKey,
			MinSeeders:  pc.MinSeeders,
			MinLeechers: pc.MinLeechers,
		})
		log.Printf("[providers] Initializing %s", describe(p))
		r.providers[strings.ToLower(desc.Name)] = p
	}
	return r
}

// Add registers p, replacing any provider with the same name.
func (r *Registry) Add(p Provider) {
	r.providers[strings.ToLower(p.Name())] = p
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("provider %q is not enabled", name)
	}
	return p, nil
}

// All returns the enabled providers sorted by name.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
