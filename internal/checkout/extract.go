package checkout

import "strings"

type CardInfo struct {
	Brand string
	Last4 string
}

type cardExtractor func(*Session) (CardInfo, bool)

// cardExtractors are tried in order. Each field comes from the first
// extractor that has it, so a brand-only charge can pair with a last4
// from the payment method.
var cardExtractors = []cardExtractor{
	cardFromFirstCharge,
	cardFromLatestCharge,
	cardFromPaymentMethod,
}

func ExtractCard(s *Session) (CardInfo, bool) {
	var out CardInfo
	for _, extract := range cardExtractors {
		c, ok := extract(s)
		if !ok {
			continue
		}
		if out.Brand == "" {
			out.Brand = c.Brand
		}
		if out.Last4 == "" {
			out.Last4 = c.Last4
		}
		if out.Brand != "" && out.Last4 != "" {
			break
		}
	}
	return out, out.Brand != "" || out.Last4 != ""
}

func cardInfo(c *Card) (CardInfo, bool) {
	if c == nil || (c.Brand == "" && c.Last4 == "") {
		return CardInfo{}, false
	}
	return CardInfo{Brand: c.Brand, Last4: c.Last4}, true
}

func cardFromFirstCharge(s *Session) (CardInfo, bool) {
	pi := s.intent()
	if pi == nil || pi.Charges == nil || len(pi.Charges.Data) == 0 {
		return CardInfo{}, false
	}
	d := pi.Charges.Data[0].PaymentMethodDetails
	if d == nil {
		return CardInfo{}, false
	}
	return cardInfo(d.Card)
}

func cardFromLatestCharge(s *Session) (CardInfo, bool) {
	pi := s.intent()
	if pi == nil || pi.LatestCharge.Object == nil || pi.LatestCharge.Object.PaymentMethodDetails == nil {
		return CardInfo{}, false
	}
	return cardInfo(pi.LatestCharge.Object.PaymentMethodDetails.Card)
}

func cardFromPaymentMethod(s *Session) (CardInfo, bool) {
	pi := s.intent()
	if pi == nil || pi.PaymentMethod.Object == nil {
		return CardInfo{}, false
	}
	return cardInfo(pi.PaymentMethod.Object.Card)
}

// CustomerEmail prefers what the customer typed at checkout, then the
// prefilled address, then the receipt address.
func CustomerEmail(s *Session) string {
	candidates := []*string{}
	if s.CustomerDetails != nil {
		candidates = append(candidates, s.CustomerDetails.Email)
	}
	candidates = append(candidates, s.CustomerEmail)
	if pi := s.intent(); pi != nil {
		candidates = append(candidates, pi.ReceiptEmail)
	}
	for _, c := range candidates {
		if c != nil && strings.TrimSpace(*c) != "" {
			return strings.TrimSpace(*c)
		}
	}
	return ""
}

// ShippingFor returns the recipient name and address. The name falls back
// to the customer's own name when shipping details carry none.
func ShippingFor(s *Session) (string, *Address) {
	ship := s.ShippingDetails
	if ship == nil {
		if pi := s.intent(); pi != nil {
			ship = pi.Shipping
		}
	}

	var name string
	var addr *Address
	if ship != nil {
		if ship.Name != nil {
			name = strings.TrimSpace(*ship.Name)
		}
		addr = ship.Address
	}
	if name == "" && s.CustomerDetails != nil && s.CustomerDetails.Name != nil {
		name = strings.TrimSpace(*s.CustomerDetails.Name)
	}
	return name, addr
}
