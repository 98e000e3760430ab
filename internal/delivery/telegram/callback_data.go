package telegram

import (
	"errors"
	"strconv"
	"strings"
)

// Callback action constants.
const (
	actionSelect   = "sel"  // MC_SINGLE option
	actionToggle   = "tog"  // MC_MULTI option
	actionSubmit   = "sub"  // submit the MC_MULTI selection
	actionTF       = "tf"   // TF value
	actionFinalize = "fin"  // finish an exhausted attempt
	actionResult   = "res"  // show result of an attempt
	actionNextQuiz = "next" // start the next quiz of the pathway
)

var errBadCallback = errors.New("malformed callback data")

// callbackData represents structured callback data.
type callbackData struct {
	Action string
	Params []string
	Raw    string
}

// encode creates callback string.
func (cd callbackData) encode() string {
	if len(cd.Params) == 0 {
		return cd.Action
	}
	return cd.Action + ":" + strings.Join(cd.Params, ":")
}

// decodeCallback parses callback data string.
func decodeCallback(data string) callbackData {
	parts := strings.Split(data, ":")
	return callbackData{
		Action: parts[0],
		Params: parts[1:],
		Raw:    data,
	}
}

// int64Param returns the i-th parameter as an int64.
func (cd callbackData) int64Param(i int) (int64, error) {
	if i >= len(cd.Params) {
		return 0, errBadCallback
	}
	n, err := strconv.ParseInt(cd.Params[i], 10, 64)
	if err != nil {
		return 0, errBadCallback
	}
	return n, nil
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

func buildSelectCallback(questionID, optionID int64) string {
	return callbackData{Action: actionSelect, Params: []string{id(questionID), id(optionID)}}.encode()
}

func buildToggleCallback(questionID, optionID int64) string {
	return callbackData{Action: actionToggle, Params: []string{id(questionID), id(optionID)}}.encode()
}

func buildSubmitCallback(questionID int64) string {
	return callbackData{Action: actionSubmit, Params: []string{id(questionID)}}.encode()
}

func buildTrueFalseCallback(questionID int64, v bool) string {
	value := "0"
	if v {
		value = "1"
	}
	return callbackData{Action: actionTF, Params: []string{id(questionID), value}}.encode()
}

func buildFinalizeCallback(attemptID int64) string {
	return callbackData{Action: actionFinalize, Params: []string{id(attemptID)}}.encode()
}

func buildResultCallback(attemptID int64) string {
	return callbackData{Action: actionResult, Params: []string{id(attemptID)}}.encode()
}

func buildNextQuizCallback(pathwayID, quizID int64) string {
	return callbackData{Action: actionNextQuiz, Params: []string{id(pathwayID), id(quizID)}}.encode()
}
