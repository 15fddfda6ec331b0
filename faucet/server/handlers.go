package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fuellabs/go-faucet/chain"
	"github.com/fuellabs/go-faucet/faucet/dispenser"
	"github.com/fuellabs/go-faucet/faucet/session"
	"github.com/pkg/errors"
)

// sessionCookie carries the authenticated API session token.
const sessionCookie = "session"

type dispenseInput struct {
	Salt    string `json:"salt"`
	Nonce   string `json:"nonce"`
	Address string `json:"address"`
}

type dispenseResponse struct {
	Status string `json:"status"`
	Tokens uint64 `json:"tokens"`
	TxID   string `json:"tx_id"`
}

type createSessionInput struct {
	Address string `json:"address"`
	Captcha string `json:"captcha"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Debug("Could not encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports process uptime and whether the node answers.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	up := s.node.Healthy(r.Context())
	status := http.StatusOK
	if !up {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]interface{}{
		"up":        true,
		"uptime":    time.Since(s.startTime).Milliseconds(),
		"fuel-core": up,
	})
}

// handleDispenseInfo tells clients what a dispense grants.
func (s *Service) handleDispenseInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":   s.dispenser.Amount(),
		"asset_id": s.dispenser.AssetID().Hex(),
	})
}

// handleDispense runs one dispense. The proof of work flow binds the
// recipient through the stored salt; the auth flow takes the recipient from
// the body and rate limits on the session's user id.
func (s *Service) handleDispense(w http.ResponseWriter, r *http.Request) {
	var in dispenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var recipient chain.Address
	var id dispenser.Identity
	if r.URL.Query().Get("method") == "pow" || in.Salt != "" {
		salt, err := session.ParseSalt(in.Salt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid salt")
			return
		}
		// The recipient committed at session creation wins; a body address
		// is ignored so a solved challenge cannot be redirected.
		recipient, err = s.sessions.Recipient(salt)
		if err != nil {
			writeError(w, http.StatusNotFound, session.ErrUnknownSalt.Error())
			return
		}
		// The salt is hashed exactly as the client sent it, and it stays
		// stored: a failed dispense may be retried with the same solution,
		// and the tracker already stops a replay from dispensing twice.
		if !s.pow.Verify(in.Salt, in.Nonce) {
			writeError(w, http.StatusNotFound, "Invalid proof of work")
			return
		}
		id = dispenser.AddressIdentity(recipient)
	} else {
		userID, ok := s.sessionUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var err error
		recipient, err = chain.ParseAddress(in.Address)
		if err != nil {
			writeError(w, http.StatusBadRequest, chain.ErrInvalidAddress.Error())
			return
		}
		id = dispenser.UserIdentity(userID)
	}

	res, err := s.dispenser.Dispense(r.Context(), recipient, id)
	if err != nil {
		if errors.Is(err, dispenser.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, dispenser.ErrRateLimited.Error())
			return
		}
		log.WithError(err).Error("Dispense failed")
		writeError(w, http.StatusInternalServerError, "failed to dispense tokens")
		return
	}
	writeJSON(w, http.StatusCreated, dispenseResponse{
		Status: "Success",
		Tokens: res.Tokens,
		TxID:   res.TxID.Hex(),
	})
}

// handleCreateSession issues a proof of work challenge bound to the
// recipient address.
func (s *Service) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in createSessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	recipient, err := chain.ParseAddress(in.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, chain.ErrInvalidAddress.Error())
		return
	}
	if s.captcha != nil {
		if err := s.captcha.Verify(r.Context(), in.Captcha); err != nil {
			log.WithError(err).Debug("Captcha verification failed")
			writeError(w, http.StatusUnauthorized, "captcha verification failed")
			return
		}
	}
	salt, err := s.sessions.Create(recipient)
	if err != nil {
		log.WithError(err).Error("Could not create session")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"status":     "Success",
		"salt":       salt.Hex(),
		"difficulty": s.pow.Difficulty(),
	})
}

// handleGetSession resolves a salt back to its committed recipient.
func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("salt")
	salt, err := session.ParseSalt(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid salt")
		return
	}
	addr, err := s.sessions.Recipient(salt)
	if err != nil {
		writeError(w, http.StatusNotFound, session.ErrUnknownSalt.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex()})
}

// handleValidateSession exchanges an identity provider token for a faucet
// API session cookie.
func (s *Service) handleValidateSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Value == "" {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if s.authnz == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userID, err := s.authnz.GetUserSession(r.Context(), in.Value)
	if err != nil {
		log.WithError(err).Debug("Session validation failed")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	token, err := s.authSess.Create(userID)
	if err != nil {
		log.WithError(err).Error("Could not create auth session")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"user": userID})
}

// handleRemoveSession invalidates the API session cookie.
func (s *Service) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.authSess.Remove(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// sessionUser resolves the request's session cookie to a user id.
func (s *Service) sessionUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	return s.authSess.User(c.Value)
}
