package notify_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/google/uuid"

	"github.com/EO-DataHub/eodhp-transfer-planner/internal/notify"
)

var _ = Describe("Plan events", func() {
	planDoc := []byte(`{"version": 1, "intents": []}`)

	It("wraps the plan in a plan-generated envelope", func() {
		event := notify.NewPlanEvent("hub", planDoc)
		Expect(event.Event).To(Equal("plan-generated"))
		Expect(event.Spec).To(Equal("hub"))
		Expect([]byte(event.Plan)).To(Equal(planDoc))
	})

	It("assigns a fresh ID to every event", func() {
		first := notify.NewPlanEvent("hub", planDoc)
		second := notify.NewPlanEvent("hub", planDoc)
		Expect(uuid.Validate(first.ID)).To(Succeed())
		Expect(second.ID).NotTo(Equal(first.ID))
	})

	It("embeds the plan document unescaped in the message payload", func() {
		event := notify.NewPlanEvent("hub", planDoc)
		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var decoded struct {
			ID    string          `json:"id"`
			Event string          `json:"event"`
			Spec  string          `json:"spec"`
			Plan  json.RawMessage `json:"plan"`
		}
		Expect(json.Unmarshal(payload, &decoded)).To(Succeed())
		Expect(decoded.Event).To(Equal("plan-generated"))
		Expect(decoded.Plan).To(MatchJSON(planDoc))
	})
})
