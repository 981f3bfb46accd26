package pipeline

// Step identifies one state of the pipeline. The orchestrator matches on
// this closed set; there is no runtime dispatch by name.
type Step int

const (
	StepValidate Step = iota
	StepProcessImage
	StepProcessPDF
	StepProcessOther
	StepSave
	StepSuccess
	StepFail
)

func (s Step) String() string {
	switch s {
	case StepValidate:
		return "validate"
	case StepProcessImage:
		return "process_image"
	case StepProcessPDF:
		return "process_pdf"
	case StepProcessOther:
		return "process_other"
	case StepSave:
		return "save_data"
	case StepSuccess:
		return "success"
	case StepFail:
		return "fail"
	default:
		return "unknown"
	}
}
