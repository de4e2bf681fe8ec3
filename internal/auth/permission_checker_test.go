package auth_test

import (
	"github.com/frahmantamala/expense-tracker/internal/auth"
	"github.com/frahmantamala/expense-tracker/internal/user"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DefaultPermissionChecker", func() {
	var (
		checker  *auth.DefaultPermissionChecker
		admin    user.Identity
		employee user.Identity
	)

	BeforeEach(func() {
		checker = auth.NewPermissionChecker()
		admin = user.Identity{ID: auth.DefaultAdminID, Username: "admin", Role: user.RoleAdmin}
		employee = user.Identity{ID: "e-1", Username: "erin", Role: user.RoleEmployee}
	})

	It("gives admins every capability", func() {
		Expect(checker.CanViewAll(admin)).To(BeTrue())
		Expect(checker.CanApprove(admin)).To(BeTrue())
		Expect(checker.CanReject(admin)).To(BeTrue())
		Expect(checker.CanModify(admin, "someone-else")).To(BeTrue())
		Expect(checker.CanCreate(admin)).To(BeTrue())
	})

	It("limits employees to their own records", func() {
		Expect(checker.CanCreate(employee)).To(BeTrue())
		Expect(checker.CanViewAll(employee)).To(BeFalse())
		Expect(checker.CanApprove(employee)).To(BeFalse())
		Expect(checker.CanReject(employee)).To(BeFalse())
		Expect(checker.CanModify(employee, "e-1")).To(BeTrue())
		Expect(checker.CanModify(employee, "e-2")).To(BeFalse())
	})

	It("denies an unknown role", func() {
		nobody := user.Identity{ID: "x", Role: user.Role("guest")}
		Expect(checker.CanCreate(nobody)).To(BeFalse())
		Expect(checker.CanModify(nobody, "x")).To(BeFalse())
	})
})
