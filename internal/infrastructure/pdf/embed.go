package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	appbilling "github.com/okiehn/rechnung-api/internal/application/billing"
)

// Embedding relationships (PDF/A-3 AFRelationship values).
const (
	RelationshipAlternative = "Alternative" // the XML is an equivalent rendition of the invoice
	RelationshipSupplement  = "Supplement"  // additional material, e.g. the timestamp token
)

var _ appbilling.Embedder = (*PDFCPUEmbedder)(nil)

// PDFCPUEmbedder attaches files to a rendered invoice PDF the PDF/A-3 way:
// the attachment is registered in the EmbeddedFiles name tree, its file
// specification carries an AFRelationship, and the document catalog lists it
// in the AF array of associated files.
type PDFCPUEmbedder struct{}

// NewPDFCPUEmbedder builds the embedder.
func NewPDFCPUEmbedder() *PDFCPUEmbedder { return &PDFCPUEmbedder{} }

// Embed returns a new document with the attachment embedded. The input bytes
// are never modified; callers hash the returned bytes.
func (e *PDFCPUEmbedder) Embed(doc []byte, attachment []byte, filename, relationship string) ([]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(doc), conf)
	if err != nil {
		return nil, fmt.Errorf("pdf: read document: %w", err)
	}

	now := time.Now()
	att := model.Attachment{
		Reader:   bytes.NewReader(attachment),
		ID:       filename,
		FileName: filename,
		Desc:     relationship + " file " + filename,
		ModTime:  &now,
	}
	if err := ctx.AddAttachment(att, false); err != nil {
		return nil, fmt.Errorf("pdf: add attachment %s: %w", filename, err)
	}

	if err := markAssociated(ctx, filename, relationship); err != nil {
		return nil, fmt.Errorf("pdf: mark associated file %s: %w", filename, err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("pdf: validate after embed: %w", err)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, fmt.Errorf("pdf: write document: %w", err)
	}
	return buf.Bytes(), nil
}

// markAssociated upgrades the plain embedded file to an associated file:
// AFRelationship on its file specification dict plus an entry in the catalog
// AF array. AddAttachment alone creates neither.
func markAssociated(ctx *model.Context, filename, relationship string) error {
	var refs types.Array

	for objNr, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		d, ok := entry.Object.(types.Dict)
		if !ok {
			continue
		}
		if typ := d.Type(); typ == nil || *typ != "Filespec" {
			continue
		}
		if name := filespecName(d); name != filename {
			continue
		}
		if _, found := d.Find("AFRelationship"); found {
			continue
		}
		d["AFRelationship"] = types.Name(relationship)
		refs = append(refs, *types.NewIndirectRef(objNr, 0))
	}

	if len(refs) == 0 {
		return fmt.Errorf("no file specification found for %s", filename)
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return fmt.Errorf("resolve catalog: %w", err)
	}
	if existing, ok := rootDict["AF"].(types.Array); ok {
		rootDict["AF"] = append(existing, refs...)
	} else {
		rootDict["AF"] = refs
	}
	return nil
}

// filespecName decodes the filename of a file specification dict. pdfcpu
// writes F/UF as escaped, possibly UTF-16 encoded string literals, so the
// raw entry value never compares equal to a plain filename.
func filespecName(d types.Dict) string {
	for _, key := range []string{"UF", "F"} {
		if sl := d.StringLiteralEntry(key); sl != nil {
			if s, err := types.StringLiteralToString(*sl); err == nil && s != "" {
				return s
			}
		}
		if hl := d.HexLiteralEntry(key); hl != nil {
			if s, err := types.HexLiteralToString(*hl); err == nil && s != "" {
				return s
			}
		}
	}
	return ""
}
