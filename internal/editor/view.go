package editor

// View is the screen an editor session is showing.
type View string

const (
	ViewMainDashboard   View = "mainDashboard"
	ViewQuizList        View = "quizList"
	ViewQuestionForm    View = "questionForm"
	ViewLinkSettings    View = "linkSettings"
	ViewColorCustomizer View = "colorCustomizer"
)

func (v View) Valid() bool {
	switch v {
	case ViewMainDashboard, ViewQuizList, ViewQuestionForm, ViewLinkSettings, ViewColorCustomizer:
		return true
	}
	return false
}
