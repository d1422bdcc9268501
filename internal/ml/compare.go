package ml

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"dga-engine/internal/dga"
)

// ComparisonDetail pairs one stored sample's normative consensus with the
// model's label. Normative is nil when no method produced a verdict.
type ComparisonDetail struct {
	SampleCode     string          `json:"sample_code"`
	TransformerID  string          `json:"transformer_id,omitempty"`
	ExtractionDate time.Time       `json:"extraction_date"`
	Normative      *dga.FaultLabel `json:"normative,omitempty"`
	VoteAgreement  float64         `json:"vote_agreement_pct"`
	Predicted      dga.FaultLabel  `json:"predicted"`
	Agree          bool            `json:"agree"`
}

// ComparisonSummary is the concordance between the normative consensus and
// the resident model. Samples without a consensus are listed in Details but
// excluded from every count.
type ComparisonSummary struct {
	Total         int                `json:"total"`
	Agreements    int                `json:"agreements"`
	Disagreements int                `json:"disagreements"`
	AgreementPct  float64            `json:"agreement_pct"`
	Unlabeled     int                `json:"unlabeled"`
	Confusion     ConfusionMatrix    `json:"confusion_matrix"`
	Details       []ComparisonDetail `json:"details"`
}

// VoteAgreement is the share of successful votes that chose label, as a
// percentage rounded to one decimal.
func VoteAgreement(votes []Vote, label dga.FaultLabel) float64 {
	total, agree := 0, 0
	for _, v := range votes {
		if v.Err != nil || !v.Label.Valid() {
			continue
		}
		total++
		if v.Label == label {
			agree++
		}
	}
	return percent(agree, total)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)*1000/float64(total)) / 10
}

// Compare labels every stored sample with the normative consensus, classifies
// it with the resident model and reports how often the two agree. Confusion
// rows are normative labels, columns the model's.
func (s *Service) Compare(ctx context.Context) (ComparisonSummary, error) {
	if !s.classifier.HasModel() {
		return ComparisonSummary{}, dga.ErrModelNotTrained
	}
	samples, err := s.builder.source.ListSamples(ctx)
	if err != nil {
		return ComparisonSummary{}, err
	}
	verdicts, err := s.builder.labelSamples(ctx, samples)
	if err != nil {
		return ComparisonSummary{}, err
	}
	readings := make([]dga.GasReading, len(samples))
	for i := range samples {
		readings[i] = samples[i].Reading
	}
	predicted, err := s.classifier.ClassifyBatch(ctx, readings)
	if err != nil {
		return ComparisonSummary{}, err
	}

	sum := summarise(samples, verdicts, predicted)
	log.Info().
		Int("compare.total", sum.Total).
		Int("compare.agreements", sum.Agreements).
		Int("compare.unlabeled", sum.Unlabeled).
		Float64("compare.agreement_pct", sum.AgreementPct).
		Msg("Normative comparison finished")
	return sum, nil
}

func summarise(samples []dga.Sample, verdicts []verdict, predicted []dga.FaultLabel) ComparisonSummary {
	sum := ComparisonSummary{Details: make([]ComparisonDetail, 0, len(samples))}
	for i, sample := range samples {
		d := ComparisonDetail{
			SampleCode:     sample.Code,
			TransformerID:  sample.TransformerID,
			ExtractionDate: sample.ExtractionDate,
			Predicted:      predicted[i],
		}
		if v := verdicts[i]; v.ok {
			label := v.label
			d.Normative = &label
			d.VoteAgreement = VoteAgreement(v.votes, label)
			d.Agree = label == predicted[i]
			sum.Total++
			if d.Agree {
				sum.Agreements++
			}
			sum.Confusion[label][predicted[i]]++
		} else {
			sum.Unlabeled++
		}
		sum.Details = append(sum.Details, d)
	}
	sum.Disagreements = sum.Total - sum.Agreements
	sum.AgreementPct = percent(sum.Agreements, sum.Total)
	return sum
}
