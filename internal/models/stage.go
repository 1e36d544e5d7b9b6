package models

// Stage is a step of the render pipeline
type Stage string

const (
	StageReceived      Stage = "received"
	StageTemplateReady Stage = "template_ready"
	StageDataBound     Stage = "data_bound"
	StageRendered      Stage = "rendered"
	StageExported      Stage = "exported"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// stageOrder lists the forward path of the pipeline
var stageOrder = []Stage{
	StageReceived,
	StageTemplateReady,
	StageDataBound,
	StageRendered,
	StageExported,
	StageDone,
}

// IsValid проверяет валидность стадии
func (s Stage) IsValid() bool {
	if s == StageFailed {
		return true
	}
	for _, st := range stageOrder {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal returns true for done and failed
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransitionTo проверяет возможность перехода в новую стадию.
// Допустим только шаг вперед по конвейеру либо переход в failed
// из любой нетерминальной стадии.
func (s Stage) CanTransitionTo(next Stage) bool {
	if s.IsTerminal() || !s.IsValid() {
		return false
	}
	if next == StageFailed {
		return true
	}
	for i, st := range stageOrder[:len(stageOrder)-1] {
		if st == s {
			return stageOrder[i+1] == next
		}
	}
	return false
}

func (s Stage) String() string {
	return string(s)
}
