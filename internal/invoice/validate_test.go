package invoice

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func warningCodes(ws []Warning) []string {
	codes := make([]string, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

var _ = Describe("Validate", func() {
	var (
		r        *Result
		warnings []Warning
	)

	BeforeEach(func() {
		r = New()
	})

	JustBeforeEach(func() {
		warnings = Validate(r)
	})

	When("text fields are blank or placeholder values", func() {
		BeforeEach(func() {
			r.InvoiceMetadata.InvoiceNumber = "  "
			r.VendorDetails.Name = "null"
			r.CustomerDetails.Phone = "N/A"
			r.PaymentInfo.Terms = "  Net   30 "
		})

		It("should substitute the sentinel", func() {
			Expect(r.InvoiceMetadata.InvoiceNumber).To(Equal(NotFound))
			Expect(r.VendorDetails.Name).To(Equal(NotFound))
			Expect(r.CustomerDetails.Phone).To(Equal(NotFound))
		})

		It("should collapse whitespace", func() {
			Expect(r.PaymentInfo.Terms).To(Equal("Net 30"))
		})
	})

	When("dates are in assorted formats", func() {
		BeforeEach(func() {
			r.InvoiceMetadata.InvoiceDate = "March 5, 2024"
			r.InvoiceMetadata.DueDate = "sometime soon"
		})

		It("should normalize recognizable dates", func() {
			Expect(r.InvoiceMetadata.InvoiceDate).To(Equal("2024-03-05"))
		})

		It("should replace unrecognized dates with the sentinel", func() {
			Expect(r.InvoiceMetadata.DueDate).To(Equal(NotFound))
		})

		It("should keep the original text in notes", func() {
			Expect(r.Notes).To(HaveKeyWithValue("invoice_metadata.due_date", "sometime soon"))
		})

		It("should warn about the unrecognized value", func() {
			Expect(warnings).To(ContainElement(Warning{
				Code:    WarnUnrecognized,
				Field:   "invoice_metadata.due_date",
				Message: `could not interpret "sometime soon"`,
			}))
		})
	})

	When("the currency is a symbol or lower case", func() {
		It("should map symbols to codes", func() {
			r.InvoiceMetadata.Currency = "€"
			Validate(r)
			Expect(r.InvoiceMetadata.Currency).To(Equal("EUR"))
		})

		It("should upper-case codes", func() {
			r.InvoiceMetadata.Currency = "inr"
			Validate(r)
			Expect(r.InvoiceMetadata.Currency).To(Equal("INR"))
		})

		It("should reject anything else", func() {
			r.InvoiceMetadata.Currency = "dollars"
			Validate(r)
			Expect(r.InvoiceMetadata.Currency).To(Equal(NotFound))
			Expect(r.Notes).To(HaveKeyWithValue("invoice_metadata.currency", "dollars"))
		})
	})

	When("a line item has a price but no quantity", func() {
		BeforeEach(func() {
			r.LineItems = []LineItem{{Description: "Consulting", UnitPrice: MoneyFromFloat(120)}}
		})

		It("should default the quantity to one", func() {
			Expect(r.LineItems[0].Quantity.String()).To(Equal("1"))
		})

		It("should derive the subtotal", func() {
			Expect(r.LineItems[0].Subtotal.String()).To(Equal("120.00"))
		})
	})

	When("a line item has a tax rate but no tax amount", func() {
		It("should derive the tax from a fractional rate", func() {
			r.LineItems = []LineItem{{Description: "Widget", Subtotal: MoneyFromFloat(100), TaxRate: NumberFromFloat(0.18)}}
			Validate(r)
			Expect(r.LineItems[0].TaxAmount.String()).To(Equal("18.00"))
		})

		It("should derive the tax from a percentage rate", func() {
			r.LineItems = []LineItem{{Description: "Widget", Subtotal: MoneyFromFloat(100), TaxRate: NumberFromFloat(5)}}
			Validate(r)
			Expect(r.LineItems[0].TaxAmount.String()).To(Equal("5.00"))
		})
	})

	When("a line item subtotal disagrees with quantity times price", func() {
		BeforeEach(func() {
			r.LineItems = []LineItem{{
				Description: "Widget",
				Quantity:    NumberFromFloat(3),
				UnitPrice:   MoneyFromFloat(10),
				Subtotal:    MoneyFromFloat(31),
			}}
		})

		It("should keep the extracted subtotal", func() {
			Expect(r.LineItems[0].Subtotal.String()).To(Equal("31.00"))
		})

		It("should tag the item for review", func() {
			Expect(r.LineItems[0].NeedsReview).To(BeTrue())
		})

		It("should add a mismatch warning", func() {
			Expect(warningCodes(warnings)).To(ContainElement(WarnSubtotalMismatch))
		})
	})

	When("a mismatched subtotal is corrected", func() {
		BeforeEach(func() {
			r.LineItems = []LineItem{{
				Description: "Widget",
				Quantity:    NumberFromFloat(2),
				UnitPrice:   MoneyFromFloat(10),
				Subtotal:    MoneyFromFloat(25),
			}}
		})

		It("should clear needs_review along with the warning", func() {
			Expect(r.LineItems[0].NeedsReview).To(BeTrue())

			r.LineItems[0].Subtotal = MoneyFromFloat(20)
			warnings = Validate(r)

			Expect(warningCodes(warnings)).NotTo(ContainElement(WarnSubtotalMismatch))
			Expect(r.LineItems[0].NeedsReview).To(BeFalse())
		})
	})

	When("a consistent line item arrives flagged for review", func() {
		BeforeEach(func() {
			r.LineItems = []LineItem{{
				Description: "Widget",
				Quantity:    NumberFromFloat(2),
				UnitPrice:   MoneyFromFloat(10),
				Subtotal:    MoneyFromFloat(20),
				NeedsReview: true,
			}}
		})

		It("should clear the flag", func() {
			Expect(r.LineItems[0].NeedsReview).To(BeFalse())
		})
	})

	When("a line item is within rounding tolerance", func() {
		BeforeEach(func() {
			r.LineItems = []LineItem{{
				Description: "Bolts",
				Quantity:    NumberFromFloat(3),
				UnitPrice:   MoneyFromFloat(3.33),
				Subtotal:    MoneyFromFloat(10),
			}}
		})

		It("should not warn", func() {
			Expect(warningCodes(warnings)).NotTo(ContainElement(WarnSubtotalMismatch))
			Expect(r.LineItems[0].NeedsReview).To(BeFalse())
		})
	})

	When("the grand total does not reconcile", func() {
		BeforeEach(func() {
			r.Summary.Subtotal = MoneyFromFloat(100)
			r.Summary.Discount = MoneyFromFloat(10)
			r.Summary.Shipping = MoneyFromFloat(5)
			r.Summary.TaxBreakdown = map[string]Money{"GST": MoneyFromFloat(18)}
			r.Summary.GrandTotal = MoneyFromFloat(120)
		})

		It("should warn without changing the total", func() {
			Expect(warningCodes(warnings)).To(ContainElement(WarnSummaryMismatch))
			Expect(r.Summary.GrandTotal.String()).To(Equal("120.00"))
		})
	})

	When("the grand total reconciles", func() {
		BeforeEach(func() {
			r.Summary.Subtotal = MoneyFromFloat(100)
			r.Summary.Discount = MoneyFromFloat(10)
			r.Summary.Shipping = MoneyFromFloat(5)
			r.Summary.TaxBreakdown = map[string]Money{"GST": MoneyFromFloat(18)}
			r.Summary.GrandTotal = MoneyFromFloat(113)
		})

		It("should not warn", func() {
			Expect(warnings).To(BeEmpty())
		})
	})

	When("summary totals are missing but line items exist", func() {
		BeforeEach(func() {
			r.LineItems = []LineItem{
				{Description: "Widget", Subtotal: MoneyFromFloat(40), Category: CategoryProduct},
				{Description: "GST 10%", Subtotal: MoneyFromFloat(4)},
			}
			r.Summary.TaxBreakdown = map[string]Money{"GST": MoneyFromFloat(4)}
		})

		It("should infer the tax category from the description", func() {
			Expect(r.LineItems[1].Category).To(Equal(CategoryTax))
		})

		It("should derive the subtotal from billable items", func() {
			Expect(r.Summary.Subtotal.String()).To(Equal("40.00"))
		})

		It("should derive the grand total", func() {
			Expect(r.Summary.GrandTotal.String()).To(Equal("44.00"))
		})
	})

	When("an email is malformed", func() {
		BeforeEach(func() {
			r.VendorDetails.Email = "billing at acme"
		})

		It("should keep the value and warn", func() {
			Expect(r.VendorDetails.Email).To(Equal("billing at acme"))
			Expect(warnings).To(ContainElement(HaveField("Field", "vendor_details.email")))
		})
	})

	When("categories use synonyms", func() {
		BeforeEach(func() {
			r.LineItems = []LineItem{
				{Description: "Freight", Category: "Delivery"},
				{Description: "Hours", Category: "LABOUR"},
				{Description: "Mystery", Category: "gizmo"},
			}
		})

		It("should map them onto the fixed set", func() {
			Expect(r.LineItems[0].Category).To(Equal(CategoryShipping))
			Expect(r.LineItems[1].Category).To(Equal(CategoryService))
			Expect(r.LineItems[2].Category).To(Equal(CategoryOther))
		})
	})

	When("payment methods repeat", func() {
		BeforeEach(func() {
			r.PaymentInfo.Methods = []string{"Cash", " cash", "Card", ""}
			r.PaymentInfo.BankDetails = &BankDetails{AccountName: " "}
		})

		It("should deduplicate keeping the first spelling", func() {
			Expect(r.PaymentInfo.Methods).To(Equal([]string{"Cash", "Card"}))
		})

		It("should drop empty bank details", func() {
			Expect(r.PaymentInfo.BankDetails).To(BeNil())
		})
	})

	When("warnings came from an extractor", func() {
		BeforeEach(func() {
			r.Warnings = []Warning{{Code: "section_missing", Field: "summary", Message: "summary was missing"}}
		})

		It("should keep them", func() {
			Expect(warningCodes(warnings)).To(ContainElement("section_missing"))
		})
	})

	Describe("idempotence", func() {
		BeforeEach(func() {
			r.InvoiceMetadata.InvoiceDate = "15/01/2024"
			r.InvoiceMetadata.DueDate = "whenever"
			r.InvoiceMetadata.Currency = "$"
			r.VendorDetails.Email = "broken@"
			r.LineItems = []LineItem{
				{Description: " Widget ", Quantity: NumberFromFloat(3), UnitPrice: MoneyFromFloat(10), Subtotal: MoneyFromFloat(31)},
				{Description: "Service call", UnitPrice: MoneyFromFloat(80)},
				{Description: "VAT", Subtotal: MoneyFromFloat(11.1)},
			}
			r.Summary.GrandTotal = MoneyFromFloat(500)
			r.PaymentInfo.Methods = []string{"Card", "card"}
		})

		It("should reach a fixed point after one run", func() {
			first, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())
			firstWarnings := append([]Warning(nil), warnings...)

			second := Validate(r)
			again, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())

			Expect(again).To(MatchJSON(first))
			Expect(second).To(Equal(firstWarnings))
		})
	})
})

var _ = Describe("Score", func() {
	It("should be zero for an empty result", func() {
		Expect(Score(New())).To(Equal(0.0))
	})

	It("should reward complete records", func() {
		r := sampleResult()
		Validate(r)
		Expect(Score(r)).To(BeNumerically(">=", 0.7))
		Expect(LevelFor(Score(r))).To(Equal(ConfidenceHigh))
	})

	It("should cap levels", func() {
		Expect(CapAt(ConfidenceHigh, ConfidenceMedium)).To(Equal(ConfidenceMedium))
		Expect(CapAt(ConfidenceLow, ConfidenceMedium)).To(Equal(ConfidenceLow))
	})
})
