package access_test

import (
	"github.com/fieldline/fieldline/internal/access"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Capability", func() {
	It("keeps the stored bit values", func() {
		Expect(int(access.CapView)).To(Equal(1))
		Expect(int(access.CapEdit)).To(Equal(2))
		Expect(int(access.CapCreate)).To(Equal(4))
		Expect(int(access.CapDelete)).To(Equal(8))
		Expect(int(access.CapApprove)).To(Equal(16))
		Expect(int(access.CapAdmin)).To(Equal(32))
	})

	It("requires every requested flag", func() {
		c := access.CapView | access.CapEdit

		Expect(c.Has(access.CapView)).To(BeTrue())
		Expect(c.Has(access.CapView | access.CapEdit)).To(BeTrue())
		Expect(c.Has(access.CapView | access.CapApprove)).To(BeFalse())
	})

	It("drops unknown bits from stored masks", func() {
		Expect(access.FromMask(0xff)).To(Equal(access.CapAll))
	})

	It("renders flag names", func() {
		Expect((access.CapView | access.CapAdmin).String()).To(Equal("VIEW|ADMIN"))
		Expect(access.Capability(0).String()).To(Equal("NONE"))
	})
})

var _ = Describe("Principal", func() {
	It("treats the ADMIN flag as administrative", func() {
		p := &access.Principal{Role: access.RoleUser, Capabilities: access.CapView | access.CapAdmin}
		Expect(p.IsAdmin()).To(BeTrue())
	})

	It("matches any of the given roles", func() {
		p := &access.Principal{Role: access.RoleGeneralContractor}
		Expect(p.HasRole(access.RoleOwner, access.RoleGeneralContractor)).To(BeTrue())
		Expect(p.HasRole(access.RoleAdmin)).To(BeFalse())
	})

	It("is safe on a nil receiver", func() {
		var p *access.Principal
		Expect(p.IsAdmin()).To(BeFalse())
		Expect(p.HasRole(access.RoleUser)).To(BeFalse())
	})
})
