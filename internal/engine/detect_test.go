// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"os"
	"path/filepath"
	"testing"
)

const xmlDecl = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n"

func writeAnalysis(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestBEAST2_CanRunAnalysis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name: "data and run",
			content: xmlDecl + `<beast namespace="beast.core" required="BEAST.base v2.7.7" version="2.7">
				<data></data>
				<run></run>
			</beast>`,
			want: true,
		},
		{
			name: "alignment and run",
			content: xmlDecl + `<beast namespace="beast.core" required="BEAST.base v2.7.7" version="2.7">
				<alignment></alignment>
				<run></run>
			</beast>`,
			want: true,
		},
		{
			name:    "case-insensitive tags",
			content: `<BEAST version="2.6"><Data id="x"><sequence/></Data><RUN chainLength="10"/></BEAST>`,
			want:    true,
		},
		{
			name:    "version attribute is case-sensitive",
			content: `<beast VERSION="2.6"><data/><run/></beast>`,
		},
		{
			name:    "US-ASCII declaration",
			content: `<?xml version="1.0" encoding="US-ASCII"?><beast version="2.7"><data/><run/></beast>`,
			want:    true,
		},
		{
			name:    "ISO-8859-1 declaration",
			content: "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><beast version=\"2.7\"><data id=\"Mus m\xfasculus\"/><run/></beast>",
			want:    true,
		},
		{
			name:    "unknown charset",
			content: `<?xml version="1.0" encoding="x-no-such-charset"?><beast version="2.7"><data/><run/></beast>`,
		},
		{
			name: "beast 1 version",
			content: xmlDecl + `<beast version="1.10.4">
				<data></data>
				<run></run>
			</beast>`,
		},
		{
			name:    "missing data",
			content: xmlDecl + `<beast version="2.7"><run></run></beast>`,
		},
		{
			name:    "missing run",
			content: xmlDecl + `<beast version="2.7"><data></data></beast>`,
		},
		{
			name:    "run nested below a child",
			content: `<beast version="2.7"><data></data><state><run/></state></beast>`,
		},
		{
			name:    "missing version",
			content: `<beast><data/><run/></beast>`,
		},
		{
			name:    "empty file",
			content: "",
		},
		{
			name:    "not xml",
			content: "\nconfig:\n    - this is not a XML file\n",
		},
		{
			name:    "other root",
			content: xmlDecl + `<some-other-tag></some-other-tag>`,
		},
		{
			name:    "truncated",
			content: `<beast version="2.7"><data></data><run>`,
		},
	}

	e := NewBEAST2(Deps{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := e.CanRunAnalysis(writeAnalysis(t, "analysis.xml", tt.content)); got != tt.want {
				t.Errorf("CanRunAnalysis() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBEASTX_CanRunAnalysis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{
			name: "beast 10",
			content: xmlDecl + `<beast version="10.5.0">
				<alignment></alignment>
				<mcmc></mcmc>
			</beast>`,
			want: true,
		},
		{
			name:    "beast 1",
			content: `<beast version="1.10.4"><taxa/><mcmc chainLength="100"/></beast>`,
			want:    true,
		},
		{
			name: "beast 2 version",
			content: xmlDecl + `<beast namespace="beast.core" required="BEAST.base v2.7.7" version="2.7">
				<alignment></alignment>
				<mcmc></mcmc>
			</beast>`,
		},
		{
			name:    "missing mcmc",
			content: xmlDecl + `<beast version="10.5.0"><alignment></alignment></beast>`,
		},
		{
			name:    "empty file",
			content: "",
		},
		{
			name:    "not xml",
			content: "\nconfig:\n    - this is not a XML file\n",
		},
		{
			name:    "other root",
			content: xmlDecl + `<some-other-tag></some-other-tag>`,
		},
	}

	e := NewBEASTX(Deps{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := e.CanRunAnalysis(writeAnalysis(t, "analysis.xml", tt.content)); got != tt.want {
				t.Errorf("CanRunAnalysis() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScriptEngines_CanRunAnalysis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		file     string
		content  string
		revbayes bool
		lphy     bool
	}{
		{file: "analysis.rev", revbayes: true},
		{file: "analysis.lphy", lphy: true},
		{file: "analysis.txt"},
		{file: "analysis.REV"},
		{file: "analysis.phylospec", revbayes: true, lphy: true},
		{file: "analysis.json", content: `{"phylospec": {}}`, revbayes: true, lphy: true},
		{file: "analysis.json", content: `{"model": {}}`},
	}

	revbayes := NewRevBayes(Deps{})
	lphy := NewLPhy(Deps{})
	for _, tt := range tests {
		t.Run(tt.file+tt.content, func(t *testing.T) {
			t.Parallel()

			path := writeAnalysis(t, tt.file, tt.content)
			if got := revbayes.CanRunAnalysis(path); got != tt.revbayes {
				t.Errorf("revbayes CanRunAnalysis() = %v, want %v", got, tt.revbayes)
			}
			if got := lphy.CanRunAnalysis(path); got != tt.lphy {
				t.Errorf("lphy CanRunAnalysis() = %v, want %v", got, tt.lphy)
			}
		})
	}
}

func TestCanRunAnalysis_MissingFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "absent.xml")
	for _, e := range []Engine{NewBEAST2(Deps{}), NewBEASTX(Deps{}), NewRevBayes(Deps{}), NewLPhy(Deps{})} {
		if e.CanRunAnalysis(missing) {
			t.Errorf("%s accepted a missing file", e.Name())
		}
	}
}
