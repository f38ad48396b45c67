package middleware

import (
	"context"
	"net/http"
	"strconv"
)

// HeaderUserID - заголовок, в котором гейтвей передает идентификатор
// аутентифицированного пользователя. Сессии и токены живут на гейтвее,
// сюда приходит уже проверенный запрос.
const HeaderUserID = "X-User-ID"

type contextKey string

const userIDKey contextKey = "userID"

// Auth извлекает идентификатор пользователя из заголовка гейтвея.
// Запрос без валидного X-User-ID отклоняется: сервис не обслуживает
// анонимные обращения.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderUserID)
		if raw == "" {
			http.Error(w, `{"error":"missing user identity"}`, http.StatusUnauthorized)
			return
		}

		userID, err := strconv.Atoi(raw)
		if err != nil || userID <= 0 {
			http.Error(w, `{"error":"invalid user identity"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID возвращает идентификатор пользователя из контекста запроса
func UserID(r *http.Request) (int, bool) {
	userID, ok := r.Context().Value(userIDKey).(int)
	return userID, ok
}

// WithUserID кладет идентификатор пользователя в контекст запроса.
// Используется в тестах хэндлеров, где цепочка middleware не собирается.
func WithUserID(r *http.Request, userID int) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}
