// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a catalog page.
type Id int

const (
	NoEngineDetectedId Id = iota + 1
	UnknownEngineId
	BinaryNotFoundId
	ContainerUnavailableId
	ImageBuildFailedId
	ConversionFailedId
	ConfigLoadFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // upstream engine documentation
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the page as terminal markdown. stylePath is a glamour
// style name ("dark", "light", "notty") or a path to a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	noEngineDetectedIssue = &Issue{
		id: NoEngineDetectedId,
		mdMsg: `
# No engine recognized this file

phylorun checks engines in a fixed order: **beast2**, **beastx**, **revbayes**, **lphy**.
The first one that accepts the file runs it.

## What each engine looks for
- **beast2**: XML with a ` + "`<beast version=\"2.x\">`" + ` root, a ` + "`<data>`" + ` or ` + "`<alignment>`" + ` child and a ` + "`<run>`" + ` child
- **beastx**: XML with a ` + "`<beast version=\"1.x\">`" + ` or ` + "`\"10.x\"`" + ` root and an ` + "`<mcmc>`" + ` child
- **revbayes**: a ` + "`.rev`" + ` file or a PhyloSpec document
- **lphy**: a ` + "`.lphy`" + ` file or a PhyloSpec document

## Things you can try
- Check which engines accept the file:
~~~
$ phylorun detect analysis.xml
~~~
- Force an engine explicitly:
~~~
$ phylorun --engine beast2 analysis.xml
~~~`,
	}

	unknownEngineIssue = &Issue{
		id: UnknownEngineId,
		mdMsg: `
# Unknown engine

The value passed to ` + "`--engine`" + ` does not name a supported engine.

## Supported engines
- beast2
- beastx
- revbayes
- lphy

~~~
$ phylorun engines
~~~`,
	}

	binaryNotFoundIssue = &Issue{
		id: BinaryNotFoundId,
		mdMsg: `
# Engine binary not found

phylorun could not find a local installation of the engine.

## Lookup order
1. ` + "`--bin <path>`" + `
2. The engine environment variable (` + "`BEAST`" + `, ` + "`BEAST_X`" + `, ` + "`LPHYBEAST`" + `)
3. The ` + "`binaries`" + ` section of your config file
4. Well-known install locations (e.g. ` + "`/Applications/BEAST 2.*`" + `)

## Things you can try
- Point phylorun at the binary:
~~~
$ phylorun --bin /path/to/beast analysis.xml
~~~
- Run the engine in a container instead, no install required:
~~~
$ phylorun --container analysis.xml
~~~`,
		extLinks: []HttpLink{
			"https://www.beast2.org",
			"https://beast.community",
			"https://revbayes.github.io",
		},
	}

	containerUnavailableIssue = &Issue{
		id: ContainerUnavailableId,
		mdMsg: `
# Container engine unavailable

Containerized runs need a reachable Docker daemon or a Podman installation.

## Things you can try
- Start Docker Desktop, or the docker service:
~~~
$ sudo systemctl start docker
~~~
- Check that your user can talk to the daemon:
~~~
$ docker version
~~~
- Use Podman instead:
~~~
$ PHYLORUN_CONTAINER_ENGINE=podman phylorun --container analysis.xml
~~~`,
		extLinks: []HttpLink{"https://docs.docker.com/get-started/get-docker/"},
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Container image build failed

The engine image is built once from a generated Dockerfile that downloads the
engine release archive. Network problems during ` + "`apt-get`" + ` or ` + "`wget`" + ` are the usual cause.

## Things you can try
- Re-run the command; builds are not retried automatically
- Check that GitHub release downloads work from your network
- Run with ` + "`--verbose`" + ` to see the full build output`,
	}

	conversionFailedIssue = &Issue{
		id: ConversionFailedId,
		mdMsg: `
# PhyloSpec conversion failed

PhyloSpec files are converted to the engine's native language before running.
The converter reported a problem with the script.

## Things you can try
- Read the converter messages printed above and fix the script
- Check that Java is installed:
~~~
$ java -version
~~~
- Point phylorun at the converter JARs with ` + "`phylospec.jar_dir`" + ` in your config`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file is CUE and is validated against a schema.

## Things you can try
- Print the effective configuration:
~~~
$ phylorun config show
~~~
- Recreate a default config file:
~~~
$ phylorun config init
~~~`,
	}

	issues = map[Id]*Issue{
		noEngineDetectedIssue.Id():     noEngineDetectedIssue,
		unknownEngineIssue.Id():        unknownEngineIssue,
		binaryNotFoundIssue.Id():       binaryNotFoundIssue,
		containerUnavailableIssue.Id(): containerUnavailableIssue,
		imageBuildFailedIssue.Id():     imageBuildFailedIssue,
		conversionFailedIssue.Id():     conversionFailedIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
	}
)

// Values returns every catalog page ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
