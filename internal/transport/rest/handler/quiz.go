package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"quizlive/internal/model"
	"quizlive/internal/repository"
)

// QuizHandler handles quiz definition endpoints.
type QuizHandler struct {
	quizzes repository.QuizRepo
}

// NewQuizHandler creates a new quiz handler.
func NewQuizHandler(quizzes repository.QuizRepo) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// Create handles POST /v1/quizzes.
func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	var quiz model.Quiz
	if err := json.NewDecoder(r.Body).Decode(&quiz); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(quiz.Questions) == 0 {
		writeError(w, http.StatusBadRequest, "quiz needs at least one question")
		return
	}
	for i := range quiz.Questions {
		if quiz.Questions[i].CorrectIndex() < 0 {
			writeError(w, http.StatusBadRequest, "every question needs a correct answer")
			return
		}
	}

	id, err := h.quizzes.Create(r.Context(), &quiz)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"quizId": id})
}

// Get handles GET /v1/quizzes/{quizId}.
func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["quizId"]

	quiz, err := h.quizzes.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid quiz id")
		return
	}
	if quiz == nil {
		writeError(w, http.StatusNotFound, "quiz not found")
		return
	}

	writeJSON(w, http.StatusOK, quiz)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
