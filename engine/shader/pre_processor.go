// pre_processor.go implements the Oxy WGSL pre-processor. It expands @oxy:include annotations
// with snippets read from the include/ directory of the shader source and substitutes ${name}
// defines, such as the storage format of the color attachment.
package shader

import (
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
)

// annotationPrefix marks an Oxy annotation inside a WGSL line comment.
const annotationPrefix = "@oxy:"

// includeDir is the directory include snippets are resolved from.
const includeDir = "include/"

// defineRegex matches a ${name} define reference.
var defineRegex = regexp.MustCompile(`\$\{(\w+)\}`)

// annotationType identifies the kind of annotation.
type annotationType string

const (
	// annotationTypeInclude injects the snippet include/<name>.wgsl at the annotation site.
	// Each snippet is injected at most once per processed source.
	//
	// Syntax: //@oxy:include <name>
	annotationTypeInclude annotationType = "include"
)

// annotation is one parsed annotation line.
type annotation struct {
	Type annotationType
	Arg  string
	Line int
}

// preProcessor is the implementation of the PreProcessor interface.
// It holds no per-call state and is safe for concurrent use.
type preProcessor struct {
	source  fs.FS
	defines map[string]string
}

// PreProcessor expands annotations and defines in WGSL source.
type PreProcessor interface {
	// Process expands every @oxy:include annotation in source, recursively, then substitutes
	// every ${name} define.
	//
	// Parameters:
	//   - source: the raw WGSL source
	//
	// Returns:
	//   - string: the expanded source
	//   - error: an error for malformed annotations, missing snippets or undefined defines
	Process(source string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor that resolves includes from source.
//
// Parameters:
//   - source: the file system include snippets are read from
//   - defines: the values substituted for ${name} references
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor
func NewPreProcessor(source fs.FS, defines map[string]string) PreProcessor {
	d := make(map[string]string, len(defines))
	for k, v := range defines {
		d[k] = v
	}
	return &preProcessor{source: source, defines: d}
}

func (p *preProcessor) Process(source string) (string, error) {
	expanded, err := p.expand(source, "", map[string]bool{})
	if err != nil {
		return "", err
	}

	var missing []string
	out := defineRegex.ReplaceAllStringFunc(expanded, func(ref string) string {
		name := defineRegex.FindStringSubmatch(ref)[1]
		v, ok := p.defines[name]
		if !ok {
			if !slices.Contains(missing, name) {
				missing = append(missing, name)
			}
			return ref
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined defines: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// expand replaces include annotations in source. file names the snippet being expanded, empty
// for the top level source. included tracks snippets already injected.
func (p *preProcessor) expand(source, file string, included map[string]bool) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", withFile(file, err)
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if included[a.Arg] {
				continue
			}
			included[a.Arg] = true

			path := includeDir + a.Arg + ".wgsl"
			data, err := fs.ReadFile(p.source, path)
			if err != nil {
				return "", withFile(file, fmt.Errorf("line %d: unknown include %q: %w", a.Line, a.Arg, err))
			}
			snippet, err := p.expand(string(data), path, included)
			if err != nil {
				return "", err
			}
			out = append(out, snippet)
		default:
			return "", withFile(file, fmt.Errorf("line %d: unknown annotation type %q", a.Line, a.Type))
		}
	}
	return strings.Join(out, "\n"), nil
}

func withFile(file string, err error) error {
	if file == "" {
		return err
	}
	return fmt.Errorf("%s: %w", file, err)
}

// parseAnnotation parses one source line. Lines that are not annotation comments return nil
// with no error.
//
// Parameters:
//   - line: the raw WGSL source line
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*annotation, error) {
	comment, ok := strings.CutPrefix(strings.TrimSpace(line), "//")
	if !ok {
		return nil, nil
	}
	after, ok := strings.CutPrefix(strings.TrimSpace(comment), annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch annotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if strings.ContainsAny(args[1], `/\.`) {
			return nil, fmt.Errorf("line %d: invalid include name %q", lineNum, args[1])
		}
		return &annotation{Type: annotationTypeInclude, Arg: args[1], Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
