// Package wgsl reflects the resource interface of WGSL shader sources: bound variables and their
// struct layouts, entry points, compute work-group size and fragment outputs. It is a regex level
// reader, not a validator; sources are expected to be valid WGSL.
package wgsl

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// entryRegexes match stage attributes and capture the entry point function name
	entryRegexes = map[Stage]*regexp.Regexp{
		StageVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		StageFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		StageCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> params: Params;
	// or handle types: @group(0) @binding(1) var img_output: texture_storage_2d<rgba16float, write>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// Reflect parses a WGSL source and returns its reflected interface.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - Module: the reflected bindings, entry points, work-group size and fragment outputs
func Reflect(source string) Module {
	cleaned := stripComments(source)
	structs := parseStructBlocks(cleaned)

	return Module{
		Bindings:        parseBindings(cleaned, structs),
		EntryPoints:     parseEntryPoints(cleaned),
		WorkgroupSize:   parseWorkgroupSize(cleaned),
		FragmentOutputs: parseFragmentOutputs(cleaned, structs),
	}
}

// HasStage reports whether the module declares an entry point for the stage.
func (m Module) HasStage(s Stage) bool {
	_, ok := m.EntryPoints[s]
	return ok
}

// EntryPoint returns the entry point function name for the stage.
//
// Parameters:
//   - s: the stage to look up
//
// Returns:
//   - string: the entry point name
//   - bool: false if the module has no entry point for the stage
func (m Module) EntryPoint(s Stage) (string, bool) {
	name, ok := m.EntryPoints[s]
	return name, ok
}

// Binding returns the resource variable with the given name.
//
// Parameters:
//   - name: the WGSL variable name
//
// Returns:
//   - Binding: the matching binding
//   - bool: false if no binding carries that name
func (m Module) Binding(name string) (Binding, bool) {
	for _, b := range m.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// parseBindings extracts all @group(N) @binding(M) resource declarations from cleaned WGSL source,
// classifies them and resolves buffer layouts against the parsed structs. The result is sorted by
// group then binding.
//
// Parameters:
//   - cleaned: WGSL source with comments already stripped
//   - structs: the struct blocks parsed from the same source
//
// Returns:
//   - []Binding: the reflected bindings
func parseBindings(cleaned string, structs []parsedStruct) []Binding {
	structSizes := computeStructSizes(structs)
	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}

	matches := bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1)
	bindings := make([]Binding, 0, len(matches))
	for _, match := range matches {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])

		b := Binding{
			Group:        uint32(group),
			Binding:      uint32(binding),
			AddressSpace: strings.TrimSpace(match[3]),
			Name:         strings.TrimSpace(match[4]),
			Type:         strings.TrimSpace(match[5]),
		}
		classifyResource(&b)

		if b.Kind.IsBuffer() {
			if layout, ok := resolveTypeLayout(b.Type, structSizes); ok {
				b.Size = layout.size
			}
			if ps, ok := byName[b.Type]; ok {
				b.Fields = structFieldLayouts(ps, structSizes)
			} else if layout, ok := wgslPrimitiveLayoutMap[b.Type]; ok {
				b.Fields = []Field{{Name: b.Name, Type: b.Type, Offset: 0, Size: layout.size}}
			}
		}

		bindings = append(bindings, b)
	}

	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Group != bindings[j].Group {
			return bindings[i].Group < bindings[j].Group
		}
		return bindings[i].Binding < bindings[j].Binding
	})
	return bindings
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions from WGSL source.
// Omitted dimensions default to 1 per the WGSL specification.
// Returns [1, 1, 1] if no @workgroup_size annotation is found.
//
// Parameters:
//   - cleaned: WGSL source with comments already stripped
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(cleaned string) [3]uint32 {
	result := [3]uint32{1, 1, 1}

	match := workgroupSizeRegex.FindStringSubmatch(cleaned)
	if match == nil {
		return result
	}

	for i := range 3 {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}

	return result
}

// parseEntryPoints extracts the entry point function name of every stage present in the source.
//
// Parameters:
//   - cleaned: WGSL source with comments already stripped
//
// Returns:
//   - map[Stage]string: entry point names keyed by stage
func parseEntryPoints(cleaned string) map[Stage]string {
	result := make(map[Stage]string, len(entryRegexes))
	for stage, re := range entryRegexes {
		if match := re.FindStringSubmatch(cleaned); match != nil {
			result[stage] = match[1]
		}
	}
	return result
}

// parseFragmentOutputs resolves the @location indices written by the fragment entry point, either
// from an attributed return type or from the @location members of the returned struct.
//
// Parameters:
//   - cleaned: WGSL source with comments already stripped
//   - structs: the struct blocks parsed from the same source
//
// Returns:
//   - []int: the sorted output locations, or nil if the source has no fragment entry point
func parseFragmentOutputs(cleaned string, structs []parsedStruct) []int {
	loc := entryRegexes[StageFragment].FindStringSubmatchIndex(cleaned)
	if loc == nil {
		return nil
	}

	header := cleaned[loc[1]:]
	if brace := strings.IndexByte(header, '{'); brace >= 0 {
		header = header[:brace]
	}
	_, ret, ok := strings.Cut(header, "->")
	if !ok {
		return nil
	}
	ret = strings.TrimSpace(ret)

	if m := locationRegex.FindStringSubmatch(ret); m != nil {
		n, _ := strconv.Atoi(m[1])
		return []int{n}
	}

	var outputs []int
	for _, ps := range structs {
		if ps.name != ret {
			continue
		}
		for _, f := range ps.fields {
			if f.location >= 0 && !f.isBuiltin {
				outputs = append(outputs, f.location)
			}
		}
	}
	sort.Ints(outputs)
	return outputs
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))

	for _, match := range matches {
		structs = append(structs, parsedStruct{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}

	return structs
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
//
// Parameters:
//   - body: the content between { and } of a struct declaration
//
// Returns:
//   - []parsedField: all fields found in the struct body
func parseStructFields(body string) []parsedField {
	lines := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])

		fields = append(fields, field)
	}

	return fields
}
