package internal_test

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/frahmantamala/tracker-bot/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AppError", func() {
	It("wraps without touching the sentinel", func() {
		cause := errors.New("dial tcp: timeout")

		err := internal.ErrTrackerUnavailable.Wrap(cause)

		Expect(internal.ErrTrackerUnavailable.Cause).To(BeNil())
		Expect(errors.Is(err, internal.ErrTrackerUnavailable)).To(BeTrue())
		Expect(errors.Is(err, cause)).To(BeTrue())
		Expect(err.StatusCode).To(Equal(http.StatusServiceUnavailable))
	})

	It("is found through fmt wrapping", func() {
		err := fmt.Errorf("report: %w", internal.ErrSprintNotFound.Withf("sprint %d not found", 7))

		appErr, ok := internal.IsAppError(err)

		Expect(ok).To(BeTrue())
		Expect(appErr.Message).To(Equal("sprint 7 not found"))
		Expect(internal.ErrSprintNotFound.Message).To(Equal("sprint not found"))
		Expect(errors.Is(err, internal.ErrProjectNotFound)).To(BeFalse())
	})

	It("renders the first validation message", func() {
		err := internal.NewValidationFieldError("sprintID", "sprint id must be a positive integer", internal.ErrCodeValidationFailed)

		status, _ := err.ToHTTPResponse()

		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(err.Error()).To(Equal("sprint id must be a positive integer"))
	})
})
