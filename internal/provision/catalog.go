// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"text/template"

	"github.com/phylorun/phylorun/internal/container"

	"github.com/Masterminds/sprig/v3"
	"github.com/distribution/reference"
	"gopkg.in/yaml.v3"
)

const (
	KeyBeast2    Key = "beast2"
	KeyBeastX    Key = "beastx"
	KeyRevBayes  Key = "revbayes"
	KeyLPhyBeast Key = "lphybeast"
)

var (
	//go:embed catalog.yaml
	catalogYAML []byte

	// ErrUnknownImage is returned when the catalog has no entry for a key.
	ErrUnknownImage = errors.New("unknown image")

	// ErrInvalidCatalog is returned when a catalog entry cannot be rendered.
	ErrInvalidCatalog = errors.New("invalid image catalog")
)

type (
	// Key names a catalog entry.
	Key string

	// Spec is one catalog entry as written in catalog.yaml. URL and Binaries
	// values are templates over the entry itself.
	Spec struct {
		Repository string            `yaml:"repository"`
		Version    string            `yaml:"version"`
		URL        string            `yaml:"url"`
		Packages   []string          `yaml:"packages"`
		Setup      []string          `yaml:"setup"`
		Binaries   map[string]string `yaml:"binaries"`
	}

	// Catalog holds the engine image specs.
	Catalog struct {
		specs map[Key]Spec
	}

	// Image is a rendered catalog entry, ready to build and run.
	Image struct {
		Key     Key
		Ref     container.ImageRef
		Version string
		// Dockerfile is the rendered, validated Dockerfile.
		Dockerfile string
		// Binaries maps binary names to absolute in-container paths.
		Binaries map[string]string
		// Digest is the hex sha256 of Dockerfile, stored as an image label.
		Digest string
	}
)

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses catalog YAML and validates every entry by rendering it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var specs map[Key]Spec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	c := &Catalog{specs: specs}
	for _, key := range c.Keys() {
		if _, err := c.Image(key); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Keys returns the catalog keys in sorted order.
func (c *Catalog) Keys() []Key {
	return slices.Sorted(maps.Keys(c.specs))
}

// Image renders the entry for key.
func (c *Catalog) Image(key Key) (Image, error) {
	spec, ok := c.specs[key]
	if !ok {
		return Image{}, fmt.Errorf("%w %q", ErrUnknownImage, key)
	}

	ref, err := imageRef(spec)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, key, err)
	}

	url, err := expand(spec.URL, spec)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s url: %w", ErrInvalidCatalog, key, err)
	}

	binaries := make(map[string]string, len(spec.Binaries))
	for name, tmpl := range spec.Binaries {
		p, err := expand(tmpl, spec)
		if err != nil {
			return Image{}, fmt.Errorf("%w: %s binary %s: %w", ErrInvalidCatalog, key, name, err)
		}
		if !path.IsAbs(p) {
			return Image{}, fmt.Errorf("%w: %s binary %s: %q is not absolute", ErrInvalidCatalog, key, name, p)
		}
		binaries[name] = p
	}

	dockerfile, err := RenderDockerfile(DockerfileParams{
		Base:     BaseImage,
		URL:      url,
		Packages: spec.Packages,
		Setup:    spec.Setup,
	})
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, key, err)
	}

	sum := sha256.Sum256([]byte(dockerfile))
	return Image{
		Key:        key,
		Ref:        ref,
		Version:    spec.Version,
		Dockerfile: dockerfile,
		Binaries:   binaries,
		Digest:     hex.EncodeToString(sum[:]),
	}, nil
}

// Binary returns the in-container path of the named binary, or "".
func (i Image) Binary(name string) string {
	return i.Binaries[name]
}

// imageRef validates "<repository>:<version>" as a tagged reference.
func imageRef(spec Spec) (container.ImageRef, error) {
	raw := spec.Repository + ":" + spec.Version
	named, err := reference.ParseNormalizedNamed(raw)
	if err != nil {
		return "", fmt.Errorf("image reference %q: %w", raw, err)
	}
	if _, ok := named.(reference.Tagged); !ok {
		return "", fmt.Errorf("image reference %q has no tag", raw)
	}
	return container.ImageRef(reference.FamiliarString(named)), nil
}

// expand renders a catalog string template with the entry as data.
func expand(tmpl string, spec Spec) (string, error) {
	t, err := template.New("catalog").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, spec); err != nil {
		return "", err
	}
	return buf.String(), nil
}
