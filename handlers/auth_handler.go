package handlers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vedantsingh72/Gatepass/config"
	"github.com/vedantsingh72/Gatepass/database"
	"github.com/vedantsingh72/Gatepass/mailer"
	"github.com/vedantsingh72/Gatepass/models"
	"github.com/vedantsingh72/Gatepass/store"
)

/* ====================== Config & Helpers ====================== */

type AuthHandler struct {
	Cfg    *config.Config
	Mailer mailer.Mailer
	OTPs   store.OTPStore
}

func NewAuthHandler(cfg *config.Config, m mailer.Mailer, otps store.OTPStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Mailer: m, OTPs: otps}
}

func (h *AuthHandler) signJWT(sub uint, role, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"name": name,
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	}
	tk := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tk.SignedString([]byte(h.Cfg.JWTSecret))
}

// otpCode draws a 6-digit code from crypto/rand.
func otpCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	n := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return fmt.Sprintf("%06d", n%1000000), nil
}

func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// issueOTP replaces any pending code for the email and mails the new one.
// The replace is a single upsert, so a leftover row can never block it.
func (h *AuthHandler) issueOTP(ctx context.Context, email string) error {
	code, err := otpCode()
	if err != nil {
		return err
	}
	expires := time.Now().Add(time.Duration(h.Cfg.OTPTTLMinutes) * time.Minute)
	if err := h.OTPs.ReplaceOTP(ctx, email, hashOTP(code), expires); err != nil {
		return err
	}
	return h.Mailer.SendOTP(email, code)
}

/* ====================== DTOs ====================== */

type StudentRegisterReq struct {
	RollNo     string `json:"rollNo"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
	Year       int    `json:"year"`
	Hostel     string `json:"hostel"`
}

type StaffRegisterReq struct {
	Role       string `json:"role"` // department|academic|hostel|gate
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Department string `json:"department"`
}

type LoginReq struct {
	Role       string `json:"role"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type OTPReq struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

/* ====================== Handlers ====================== */

// POST /auth/students/register
func (h *AuthHandler) StudentRegister(c echo.Context) error {
	var req StudentRegisterReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}

	roll := strings.TrimSpace(req.RollNo)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if roll == "" || req.Name == "" || email == "" || req.Password == "" || req.Department == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	var dup models.User
	if err := database.DB.Where("role = ? AND identifier = ?", models.RoleStudent, roll).
		First(&dup).Error; err == nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "ROLL_NO_EXISTS"})
	}
	if err := database.DB.Where("email = ?", email).First(&dup).Error; err == nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "EMAIL_EXISTS"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "HASH_FAILED"})
	}

	rec := models.User{
		Role:       models.RoleStudent,
		Identifier: roll,
		Name:       strings.TrimSpace(req.Name),
		Email:      email,
		Password:   string(hash),
		Department: strings.TrimSpace(req.Department),
		Year:       req.Year,
		Hostel:     strings.TrimSpace(req.Hostel),
		Verified:   h.Cfg.IsDev(), // explicit flag; the client must not sniff messages
	}
	if err := database.DB.Create(&rec).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	msg := "Registered. Check your email for the verification code."
	if rec.Verified {
		msg = "Registered and verified."
	} else if err := h.issueOTP(c.Request().Context(), email); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "OTP_SEND_FAILED"})
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"id":       rec.ID,
		"verified": rec.Verified,
		"message":  msg,
	})
}

// POST /auth/staff/register
func (h *AuthHandler) StaffRegister(c echo.Context) error {
	var req StaffRegisterReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	id := strings.TrimSpace(req.Identifier)
	if !models.StaffRole(role) {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ROLE"})
	}
	if id == "" || req.Name == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	var dup models.User
	if err := database.DB.Where("role = ? AND identifier = ?", role, id).
		First(&dup).Error; err == nil {
		return c.JSON(http.StatusConflict, map[string]any{"error": "IDENTIFIER_EXISTS"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "HASH_FAILED"})
	}

	rec := models.User{
		Role:       role,
		Identifier: id,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(strings.ToLower(req.Email)),
		Password:   string(hash),
		Department: strings.TrimSpace(req.Department),
		Verified:   true, // staff accounts have no email verification step
	}
	if err := database.DB.Create(&rec).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, map[string]any{"id": rec.ID, "verified": true})
}

// POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req OTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || len(req.OTP) != 6 {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	ctx := c.Request().Context()
	rec, err := h.OTPs.GetOTP(ctx, email)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "OTP_NOT_FOUND"})
	}
	if time.Now().After(rec.ExpiresAt) {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "OTP_EXPIRED"})
	}
	if rec.Attempts >= 5 {
		return c.JSON(http.StatusTooManyRequests, map[string]any{"error": "TOO_MANY_ATTEMPTS"})
	}
	if hashOTP(req.OTP) != rec.CodeHash {
		_ = h.OTPs.FailOTP(ctx, email)
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_OTP"})
	}

	if err := database.DB.Model(&models.User{}).
		Where("email = ? AND role = ?", email, models.RoleStudent).
		Update("verified", true).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	_ = h.OTPs.DeleteOTP(ctx, email)
	return c.JSON(http.StatusOK, map[string]any{"verified": true})
}

// POST /auth/resend-otp
func (h *AuthHandler) ResendOTP(c echo.Context) error {
	var req OTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	var u models.User
	err := database.DB.Where("email = ? AND role = ?", email, models.RoleStudent).First(&u).Error
	if err == gorm.ErrRecordNotFound {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})
	}
	if u.Verified {
		return c.JSON(http.StatusConflict, map[string]any{"error": "ALREADY_VERIFIED"})
	}
	if err := h.issueOTP(c.Request().Context(), email); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "OTP_SEND_FAILED"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_PAYLOAD"})
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	id := strings.TrimSpace(req.Identifier)
	if !models.ValidRole(role) {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "INVALID_ROLE"})
	}
	if id == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "MISSING_FIELDS"})
	}

	var u models.User
	if err := database.DB.Where("role = ? AND identifier = ?", role, id).First(&u).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "INVALID_CREDENTIALS"})
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "INVALID_CREDENTIALS"})
	}
	if !u.Verified {
		return c.JSON(http.StatusForbidden, map[string]any{"error": "EMAIL_NOT_VERIFIED"})
	}

	token, err := h.signJWT(u.ID, u.Role, u.Name, 7*24*time.Hour)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "TOKEN_GEN_FAILED"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"token": token,
		"role":  u.Role,
		"user":  u,
	})
}

// GET /auth/profile
func (h *AuthHandler) Profile(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "UNAUTHORIZED"})
	}
	var u models.User
	if err := database.DB.First(&u, "id = ?", uid).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "NOT_FOUND"})
	}
	return c.JSON(http.StatusOK, u)
}
