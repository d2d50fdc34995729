// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/moby/buildkit/frontend/dockerfile/parser"
)

// BaseImage is the base every engine image is built FROM.
const BaseImage = "ubuntu:latest"

// DockerfileParams are the inputs of dockerfileTemplate.
type DockerfileParams struct {
	Base     string
	URL      string
	Packages []string
	Setup    []string
}

var dockerfileTemplate = template.Must(template.New("Dockerfile").Funcs(dockerfileFuncs()).Parse(`FROM {{ .Base }}
RUN apt-get update \
    && DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends {{ .Packages | uniq | join " " }} \
    && rm -rf /var/lib/apt/lists/*
RUN wget -q {{ .URL | quote }} -O /tmp/{{ archive .URL }} \
    && tar -xzf /tmp/{{ archive .URL }} -C /opt \
    && rm /tmp/{{ archive .URL }}
{{- range .Setup }}
RUN {{ . | trim }}
{{- end }}
`))

// dockerfileFuncs is sprig plus "archive", the file name of a release URL.
func dockerfileFuncs() template.FuncMap {
	funcs := sprig.TxtFuncMap()
	funcs["archive"] = path.Base
	return funcs
}

// RenderDockerfile renders and validates an engine Dockerfile.
func RenderDockerfile(params DockerfileParams) (string, error) {
	if params.Base == "" {
		params.Base = BaseImage
	}
	if params.URL == "" {
		return "", fmt.Errorf("release archive URL is empty")
	}
	if len(params.Packages) == 0 {
		params.Packages = []string{"wget", "tar", "ca-certificates"}
	}

	var buf bytes.Buffer
	if err := dockerfileTemplate.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render Dockerfile: %w", err)
	}

	out := buf.String()
	if err := ValidateDockerfile(out); err != nil {
		return "", err
	}
	return out, nil
}

// ValidateDockerfile parses a Dockerfile with the BuildKit frontend parser
// and requires the first instruction to be FROM.
func ValidateDockerfile(content string) error {
	result, err := parser.Parse(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("invalid Dockerfile: %w", err)
	}
	if len(result.AST.Children) == 0 {
		return fmt.Errorf("invalid Dockerfile: no instructions")
	}
	if first := result.AST.Children[0]; !strings.EqualFold(first.Value, "from") {
		return fmt.Errorf("invalid Dockerfile: first instruction is %s, want FROM", strings.ToUpper(first.Value))
	}
	return nil
}
