package jobspec

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// SyntaxError wraps HCL parse diagnostics for a job spec.
type SyntaxError struct {
	Filename string
	Diags    hcl.Diagnostics
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("jobspec: %s: %s", e.Filename, e.Diags.Error())
}

// CheckSyntax parses the spec as HCL and reports diagnostics.
// This is a local structural gate only — schema validation against the
// cluster happens through the validate endpoint.
func CheckSyntax(filename string, src []byte) error {
	_, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return &SyntaxError{Filename: filename, Diags: diags}
	}
	return nil
}

// ImageRefs extracts every statically-known `image = "..."` attribute from
// the spec. Used to show what a rendered spec will run and to assert the
// rewrite landed where expected.
func ImageRefs(filename string, src []byte) ([]string, error) {
	file, diags := hclsyntax.ParseConfig(src, filename, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &SyntaxError{Filename: filename, Diags: diags}
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, nil
	}

	var refs []string
	collectImages(body, &refs)
	return refs, nil
}

func collectImages(body *hclsyntax.Body, refs *[]string) {
	for _, attr := range body.Attributes {
		if attr.Name != "image" {
			continue
		}
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() || val.Type() != cty.String {
			continue // interpolated or non-string image, skip
		}
		*refs = append(*refs, val.AsString())
	}
	for _, block := range body.Blocks {
		collectImages(block.Body, refs)
	}
}
