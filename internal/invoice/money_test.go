package invoice

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Money", func() {
	DescribeTable("ParseMoney",
		func(input string, expected string, ok bool) {
			m, parsed := ParseMoney(input)
			Expect(parsed).To(Equal(ok))
			Expect(m.String()).To(Equal(expected))
		},
		Entry("plain decimal", "12.5", "12.50", true),
		Entry("dollar with thousands", "$1,234.56", "1234.56", true),
		Entry("rupee", "₹ 2,500", "2500.00", true),
		Entry("currency code", "USD 99.999", "100.00", true),
		Entry("european notation", "1.234,56 €", "1234.56", true),
		Entry("decimal comma", "12,50", "12.50", true),
		Entry("accounting negative", "(15.00)", "-15.00", true),
		Entry("leading minus", "-3.10", "-3.10", true),
		Entry("sentinel", NotFound, NotFound, false),
		Entry("no digits", "n/a", NotFound, false),
		Entry("empty", "", NotFound, false),
	)

	Describe("UnmarshalJSON", func() {
		var m Money

		It("should accept a JSON number", func() {
			Expect(json.Unmarshal([]byte(`42.1`), &m)).To(Succeed())
			Expect(m.String()).To(Equal("42.10"))
		})

		It("should accept a numeric string", func() {
			Expect(json.Unmarshal([]byte(`"$7.25"`), &m)).To(Succeed())
			Expect(m.String()).To(Equal("7.25"))
		})

		It("should treat null as not found", func() {
			Expect(json.Unmarshal([]byte(`null`), &m)).To(Succeed())
			Expect(m.Valid()).To(BeFalse())
		})

		It("should treat the sentinel as not found", func() {
			Expect(json.Unmarshal([]byte(`"Not Found"`), &m)).To(Succeed())
			Expect(m.Valid()).To(BeFalse())
		})

		It("should reject a JSON object", func() {
			Expect(json.Unmarshal([]byte(`{}`), &m)).NotTo(Succeed())
		})
	})

	Describe("Add", func() {
		It("should treat a missing side as zero", func() {
			Expect(MoneyFromFloat(2).Add(Money{}).String()).To(Equal("2.00"))
		})

		It("should stay not found when both sides are missing", func() {
			Expect(Money{}.Add(Money{}).Valid()).To(BeFalse())
		})
	})
})

var _ = Describe("Number", func() {
	It("should round to four decimals", func() {
		Expect(NumberFromFloat(0.123456).String()).To(Equal("0.1235"))
	})

	It("should marshal without forced decimals", func() {
		data, err := json.Marshal(NumberFromFloat(3))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("3"))
	})

	It("should parse percentages", func() {
		n, ok := ParseNumber("18%")
		Expect(ok).To(BeTrue())
		Expect(n.String()).To(Equal("18"))
	})
})
