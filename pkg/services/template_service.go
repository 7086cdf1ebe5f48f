package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gamenightbot/gamenight/pkg/database"
	"github.com/gamenightbot/gamenight/pkg/models"
)

// TemplateService manages game templates. Every query runs guild-scoped so
// RLS backs up the application-level guild filter.
type TemplateService struct {
	db *database.Client
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(db *database.Client) *TemplateService {
	return &TemplateService{db: db}
}

const templateColumns = `id, guild_id, name, channel_id, notify_role_ids,
       allowed_host_role_ids, allowed_player_role_ids, default_max_players,
       default_reminder_minutes, default_duration_minutes, default_location,
       default_instructions, allowed_signup_methods, default_signup_method,
       locked_fields, is_default, sort_order, created_at, updated_at`

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var (
		t             models.Template
		allowed       []string
		defaultMethod string
	)
	err := row.Scan(&t.ID, &t.GuildID, &t.Name, &t.ChannelID, &t.NotifyRoleIDs,
		&t.AllowedHostRoleIDs, &t.AllowedPlayerRoleIDs, &t.DefaultMaxPlayers,
		&t.DefaultReminderMinutes, &t.DefaultDurationMinutes, &t.DefaultLocation,
		&t.DefaultInstructions, &allowed, &defaultMethod,
		&t.LockedFields, &t.IsDefault, &t.SortOrder, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	t.DefaultSignupMethod = models.SignupMethod(defaultMethod)
	t.AllowedSignupMethods = make([]models.SignupMethod, len(allowed))
	for i, m := range allowed {
		t.AllowedSignupMethods[i] = models.SignupMethod(m)
	}
	return &t, nil
}

// List returns the guild's templates in sort order.
func (s *TemplateService) List(ctx context.Context, guildID string) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT `+templateColumns+` FROM guild_templates
			  WHERE guild_id = $1 ORDER BY sort_order, created_at`, guildID)
		if err != nil {
			return fmt.Errorf("failed to list templates: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTemplate(rows)
			if err != nil {
				return err
			}
			templates = append(templates, *t)
		}
		return rows.Err()
	})
	return templates, err
}

// Get fetches one template within a guild.
func (s *TemplateService) Get(ctx context.Context, guildID, id string) (*models.Template, error) {
	var t *models.Template
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		var err error
		t, err = scanTemplate(tx.QueryRow(ctx,
			`SELECT `+templateColumns+` FROM guild_templates
			  WHERE guild_id = $1 AND id = $2`, guildID, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func validateTemplateRequest(req CreateTemplateRequest) error {
	if req.Name == "" {
		return NewValidationError("name", "required")
	}
	if req.ChannelID == "" {
		return NewValidationError("channel_id", "required")
	}
	if req.DefaultMaxPlayers < 0 {
		return NewValidationError("default_max_players", "must not be negative")
	}
	if req.DefaultDurationMinutes <= 0 {
		return NewValidationError("default_duration_minutes", "must be positive")
	}
	if req.DefaultSignupMethod != "" && !models.ValidSignupMethod(req.DefaultSignupMethod) {
		return NewValidationError("default_signup_method", "invalid: must be 'SELF_SIGNUP' or 'HOST_SELECTED'")
	}
	for _, m := range req.AllowedSignupMethods {
		if !models.ValidSignupMethod(m) {
			return NewValidationError("allowed_signup_methods", fmt.Sprintf("invalid method %q", m))
		}
	}
	for _, offset := range req.DefaultReminderMinutes {
		if offset <= 0 {
			return NewValidationError("default_reminder_minutes", "offsets must be positive")
		}
	}
	return nil
}

// Create adds a template at the end of the guild's sort order.
func (s *TemplateService) Create(ctx context.Context, guildID string, req CreateTemplateRequest) (*models.Template, error) {
	if err := validateTemplateRequest(req); err != nil {
		return nil, err
	}
	if req.DefaultSignupMethod == "" {
		req.DefaultSignupMethod = models.SignupSelf
	}

	var t *models.Template
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		var err error
		t, err = scanTemplate(tx.QueryRow(ctx,
			`INSERT INTO guild_templates (
			     guild_id, name, channel_id, notify_role_ids,
			     allowed_host_role_ids, allowed_player_role_ids,
			     default_max_players, default_reminder_minutes,
			     default_duration_minutes, default_location,
			     default_instructions, allowed_signup_methods,
			     default_signup_method, locked_fields, sort_order)
			 SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			        COALESCE(MAX(sort_order) + 1, 0)
			   FROM guild_templates WHERE guild_id = $1
			 RETURNING `+templateColumns,
			guildID, req.Name, req.ChannelID, orEmpty(req.NotifyRoleIDs),
			orEmpty(req.AllowedHostRoleIDs), orEmpty(req.AllowedPlayerRoleIDs),
			req.DefaultMaxPlayers, orEmptyInts(req.DefaultReminderMinutes),
			req.DefaultDurationMinutes, req.DefaultLocation,
			req.DefaultInstructions, signupMethodStrings(req.AllowedSignupMethods),
			req.DefaultSignupMethod, orEmpty(req.LockedFields)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies the non-nil fields of req to a template.
func (s *TemplateService) Update(ctx context.Context, guildID, id string, req UpdateTemplateRequest) (*models.Template, error) {
	var t *models.Template
	err := s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		current, err := scanTemplate(tx.QueryRow(ctx,
			`SELECT `+templateColumns+` FROM guild_templates
			  WHERE guild_id = $1 AND id = $2 FOR UPDATE`, guildID, id))
		if err != nil {
			return err
		}

		applyTemplateUpdate(current, req)
		if err := validateTemplateRequest(templateAsCreate(current)); err != nil {
			return err
		}

		t, err = scanTemplate(tx.QueryRow(ctx,
			`UPDATE guild_templates SET
			     name = $3, channel_id = $4, notify_role_ids = $5,
			     allowed_host_role_ids = $6, allowed_player_role_ids = $7,
			     default_max_players = $8, default_reminder_minutes = $9,
			     default_duration_minutes = $10, default_location = $11,
			     default_instructions = $12, allowed_signup_methods = $13,
			     default_signup_method = $14, locked_fields = $15,
			     updated_at = now()
			  WHERE guild_id = $1 AND id = $2
			 RETURNING `+templateColumns,
			guildID, id, current.Name, current.ChannelID, orEmpty(current.NotifyRoleIDs),
			orEmpty(current.AllowedHostRoleIDs), orEmpty(current.AllowedPlayerRoleIDs),
			current.DefaultMaxPlayers, orEmptyInts(current.DefaultReminderMinutes),
			current.DefaultDurationMinutes, current.DefaultLocation,
			current.DefaultInstructions, signupMethodStrings(current.AllowedSignupMethods),
			current.DefaultSignupMethod, orEmpty(current.LockedFields)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a template. The guild's default template cannot be
// deleted; templates with existing games cannot be deleted either because
// games keep a foreign key to their template.
func (s *TemplateService) Delete(ctx context.Context, guildID, id string) error {
	return s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		var isDefault bool
		err := tx.QueryRow(ctx,
			`SELECT is_default FROM guild_templates
			  WHERE guild_id = $1 AND id = $2 FOR UPDATE`, guildID, id,
		).Scan(&isDefault)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load template: %w", err)
		}
		if isDefault {
			return ErrDefaultTemplate
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM guild_templates WHERE guild_id = $1 AND id = $2`, guildID, id); err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		return nil
	})
}

// SetDefault moves the guild's default flag to the given template.
func (s *TemplateService) SetDefault(ctx context.Context, guildID, id string) error {
	return s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		// Clear first; the partial unique index forbids two defaults even
		// transiently within a statement.
		if _, err := tx.Exec(ctx,
			`UPDATE guild_templates SET is_default = FALSE, updated_at = now()
			  WHERE guild_id = $1 AND is_default`, guildID); err != nil {
			return fmt.Errorf("failed to clear default template: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE guild_templates SET is_default = TRUE, updated_at = now()
			  WHERE guild_id = $1 AND id = $2`, guildID, id)
		if err != nil {
			return fmt.Errorf("failed to set default template: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Reorder assigns sort_order by the position of each id in order. Every
// template of the guild must appear exactly once.
func (s *TemplateService) Reorder(ctx context.Context, guildID string, order []string) error {
	if len(order) == 0 {
		return NewValidationError("template_ids", "required")
	}

	return s.db.InGuildTx(ctx, guildID, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM guild_templates WHERE guild_id = $1`, guildID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count templates: %w", err)
		}
		if count != len(order) {
			return NewValidationError("template_ids", "must list every template of the guild exactly once")
		}

		for i, templateID := range order {
			tag, err := tx.Exec(ctx,
				`UPDATE guild_templates SET sort_order = $3, updated_at = now()
				  WHERE guild_id = $1 AND id = $2`, guildID, templateID, i)
			if err != nil {
				return fmt.Errorf("failed to reorder template %s: %w", templateID, err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
		}
		return nil
	})
}

// applyTemplateUpdate copies the non-nil request fields onto t.
func applyTemplateUpdate(t *models.Template, req UpdateTemplateRequest) {
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.ChannelID != nil {
		t.ChannelID = *req.ChannelID
	}
	if req.NotifyRoleIDs != nil {
		t.NotifyRoleIDs = *req.NotifyRoleIDs
	}
	if req.AllowedHostRoleIDs != nil {
		t.AllowedHostRoleIDs = *req.AllowedHostRoleIDs
	}
	if req.AllowedPlayerRoleIDs != nil {
		t.AllowedPlayerRoleIDs = *req.AllowedPlayerRoleIDs
	}
	if req.DefaultMaxPlayers != nil {
		t.DefaultMaxPlayers = *req.DefaultMaxPlayers
	}
	if req.DefaultReminderMinutes != nil {
		t.DefaultReminderMinutes = *req.DefaultReminderMinutes
	}
	if req.DefaultDurationMinutes != nil {
		t.DefaultDurationMinutes = *req.DefaultDurationMinutes
	}
	if req.DefaultLocation != nil {
		t.DefaultLocation = *req.DefaultLocation
	}
	if req.DefaultInstructions != nil {
		t.DefaultInstructions = *req.DefaultInstructions
	}
	if req.AllowedSignupMethods != nil {
		t.AllowedSignupMethods = *req.AllowedSignupMethods
	}
	if req.DefaultSignupMethod != nil {
		t.DefaultSignupMethod = *req.DefaultSignupMethod
	}
	if req.LockedFields != nil {
		t.LockedFields = *req.LockedFields
	}
}

// templateAsCreate projects a template back into the create-request shape
// so updates share the create validation.
func templateAsCreate(t *models.Template) CreateTemplateRequest {
	return CreateTemplateRequest{
		Name:                   t.Name,
		ChannelID:              t.ChannelID,
		NotifyRoleIDs:          t.NotifyRoleIDs,
		AllowedHostRoleIDs:     t.AllowedHostRoleIDs,
		AllowedPlayerRoleIDs:   t.AllowedPlayerRoleIDs,
		DefaultMaxPlayers:      t.DefaultMaxPlayers,
		DefaultReminderMinutes: t.DefaultReminderMinutes,
		DefaultDurationMinutes: t.DefaultDurationMinutes,
		DefaultLocation:        t.DefaultLocation,
		DefaultInstructions:    t.DefaultInstructions,
		AllowedSignupMethods:   t.AllowedSignupMethods,
		DefaultSignupMethod:    t.DefaultSignupMethod,
		LockedFields:           t.LockedFields,
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyInts(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}

func signupMethodStrings(methods []models.SignupMethod) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}
