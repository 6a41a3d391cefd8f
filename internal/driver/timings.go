package driver

import (
	"encoding/json"
	"fmt"

	"cdsc/internal/diag"
	"cdsc/internal/observ"
	"cdsc/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// appendTimingDiagnostic добавляет итог таймера в конец Bag как
// info-сообщение: человеку — текст, машине — JSON в note.
func appendTimingDiagnostic(bag *diag.Bag, report observ.Report) {
	if bag == nil || len(report.Phases) == 0 {
		return
	}
	payload := timingPayload{Kind: "compile", TotalMS: report.TotalMS, Phases: report.Phases}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	entry := diag.Message{
		Severity: diag.SevInfo,
		Code:     diag.ObsTimings,
		Text:     fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS),
		Notes:    []diag.Note{{Loc: source.Loc{}, Msg: string(data)}},
	}
	if bag.Add(entry) {
		return
	}
	// Bag переполнен: тайминги запросили явно, расширяем через Merge.
	overflow := diag.NewBag(bag.Len() + 1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
