//go:build integration

package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rendi-app/rendi/internal/checklist"
	"github.com/rendi-app/rendi/internal/database"
	"github.com/rendi-app/rendi/internal/partners"
	"github.com/rendi-app/rendi/internal/profile"
	"github.com/rendi-app/rendi/internal/survey"
	"github.com/rendi-app/rendi/internal/users"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "rendi_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "starting postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/rendi_test?sslmode=disable", host, port.Port())
	require.NoError(t, database.RunMigrations(dsn, "../../migrations"))
	// A second run finds nothing to apply.
	require.NoError(t, database.RunMigrations(dsn, "../../migrations"))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.HealthCheck(ctx, pool))
	return pool
}

func TestPostgres_Repositories(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	userSvc := users.NewService(users.NewRepository(pool))
	user, err := userSvc.Register(ctx, "google-123", "jiwoo@example.com", "Jiwoo", "")
	require.NoError(t, err)
	require.NotZero(t, user.ID)

	t.Run("users upsert keeps id", func(t *testing.T) {
		again, err := userSvc.Register(ctx, "google-123", "jiwoo@example.com", "Jiwoo Kim", "https://img/p.png")
		require.NoError(t, err)
		assert.Equal(t, user.ID, again.ID)

		got, err := userSvc.GetByGoogleID(ctx, "google-123")
		require.NoError(t, err)
		assert.Equal(t, "Jiwoo Kim", got.Name)
		assert.Equal(t, "https://img/p.png", got.Picture)

		missing, err := userSvc.GetByGoogleID(ctx, "google-unknown")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("profile extra needs basic", func(t *testing.T) {
		svc := profile.NewService(profile.NewRepository(pool))
		smoking := false

		_, err := svc.SaveExtra(ctx, user.ID, &profile.ExtraRequest{MBTI: "INTJ", Smoking: &smoking})
		assert.ErrorIs(t, err, profile.ErrBasicRequired)

		_, err = svc.SaveBasic(ctx, user.ID, &profile.BasicRequest{Name: "지우", Age: 29, Gender: "female"})
		require.NoError(t, err)
		_, err = svc.SaveExtra(ctx, user.ID, &profile.ExtraRequest{MBTI: "INTJ", Smoking: &smoking})
		require.NoError(t, err)

		view, err := svc.Get(ctx, user)
		require.NoError(t, err)
		require.NotNil(t, view.Basic)
		require.NotNil(t, view.Extra)
		assert.Equal(t, 29, view.Basic.Age)
		assert.Equal(t, "INTJ", view.Extra.MBTI)
	})

	t.Run("survey replace", func(t *testing.T) {
		svc := survey.NewService(survey.NewRepository(pool))

		res, err := svc.SaveChoices(ctx, user.ID, survey.Lifestyle, &survey.SaveChoicesRequest{Answers: []survey.ChoiceAnswer{
			{QuestionID: 1, OptionID: "2"},
			{QuestionID: 2, OptionIDs: []string{"1", "3"}},
		}})
		require.NoError(t, err)
		assert.Equal(t, 3, res.SavedCount)

		_, err = svc.SaveChoices(ctx, user.ID, survey.Lifestyle, &survey.SaveChoicesRequest{Answers: []survey.ChoiceAnswer{
			{QuestionID: 2, OptionIDs: []string{"4", "5"}},
		}})
		require.NoError(t, err)

		got, err := svc.Get(ctx, user.ID, survey.Lifestyle)
		require.NoError(t, err)
		assert.Equal(t, []survey.QuestionAnswers{{QuestionID: 2, AnswerIDs: []string{"4", "5"}}}, got)

		_, err = svc.SaveEssay(ctx, user.ID, &survey.EssayRequest{QuestionID: 34, Text: "first"})
		require.NoError(t, err)
		_, err = svc.SaveEssay(ctx, user.ID, &survey.EssayRequest{QuestionID: 34, Text: "second"})
		require.NoError(t, err)
		essay, err := svc.Get(ctx, user.ID, survey.Essay)
		require.NoError(t, err)
		assert.Equal(t, []survey.QuestionAnswers{{QuestionID: 34, Text: "second"}}, essay)
	})

	t.Run("partners", func(t *testing.T) {
		svc := partners.NewService(partners.NewRepository(pool))

		_, err := svc.Latest(ctx, user.ID)
		assert.ErrorIs(t, err, partners.ErrNoPartner)

		first, err := svc.Create(ctx, user.ID, &partners.CreateRequest{
			MeetingDate: "2025-08-01",
			Answers:     []partners.AnswerRequest{{QuestionID: 1, OptionID: "1"}},
		})
		require.NoError(t, err)
		second, err := svc.Create(ctx, user.ID, &partners.CreateRequest{
			Answers: []partners.AnswerRequest{{QuestionID: 2, OptionID: "3"}, {QuestionID: 5, OptionID: "2"}},
		})
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)

		latest, err := svc.Latest(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
		assert.Empty(t, latest.MeetingDate)
		assert.Len(t, latest.Answers, 2)

		scheduled, err := svc.Schedule(ctx, user.ID, &partners.ScheduleRequest{
			MeetingDate: "2025-08-09", MeetingTime: "18:30", MeetingPlace: "한남동",
		})
		require.NoError(t, err)
		assert.Equal(t, second.ID, scheduled.ID)
		assert.Equal(t, "2025-08-09", scheduled.MeetingDate)
		assert.Equal(t, "18:30", scheduled.MeetingTime)

		list, total, err := svc.List(ctx, user.ID, partners.DefaultListParams())
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, list, 2)
		assert.Equal(t, second.ID, list[0].ID)
		assert.Equal(t, []partners.Answer{{QuestionID: 1, OptionID: "1"}}, list[1].Answers)
	})

	t.Run("checklist toggles", func(t *testing.T) {
		svc := checklist.NewService(checklist.NewRepository(pool))

		items, err := svc.Items(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, items)

		on, off := true, false
		require.NoError(t, svc.Toggle(ctx, user.ID, &checklist.ToggleRequest{Date: "2025-08-09", ItemID: items[0].ID, Checked: &on}))
		require.NoError(t, svc.Toggle(ctx, user.ID, &checklist.ToggleRequest{Date: "2025-08-09", ItemID: items[1].ID, Checked: &on}))
		require.NoError(t, svc.Toggle(ctx, user.ID, &checklist.ToggleRequest{Date: "2025-08-09", ItemID: items[1].ID, Checked: &off}))

		daily, err := svc.ForDate(ctx, user.ID, "2025-08-09")
		require.NoError(t, err)
		require.Len(t, daily.Items, len(items))
		assert.True(t, daily.Items[0].Checked)
		assert.False(t, daily.Items[1].Checked)

		err = svc.Toggle(ctx, user.ID, &checklist.ToggleRequest{Date: "2025-08-09", ItemID: 9999, Checked: &on})
		assert.ErrorIs(t, err, checklist.ErrUnknownItem)
	})
}
