package practice

import "github.com/quizforge/quiztaker/internal/model"

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

// SeedQuizzes returns the fixture quizzes the practice backend serves.
func SeedQuizzes() []*Quiz {
	return []*Quiz{
		{
			Quiz: model.Quiz{
				ID:                     "go-basics",
				Title:                  "Go Basics",
				Description:            "Ten-minute warmup covering syntax and the standard library.",
				TimeLimitMinutes:       intPtr(10),
				PassingScorePercentage: 60,
				MaxAttempts:            0,
				RequiresRegistration:   false,
			},
			Questions: []Question{
				{
					Question: model.Question{
						ID:               "gb-q1",
						Text:             "Which keyword declares a new variable with inferred type?",
						Points:           1,
						TimeLimitSeconds: 60,
						Options: []model.Option{
							{ID: "gb-q1-a", Text: "var x = 1"},
							{ID: "gb-q1-b", Text: "x := 1"},
							{ID: "gb-q1-c", Text: "let x = 1"},
							{ID: "gb-q1-d", Text: "x = 1"},
						},
					},
					CorrectOptionID: "gb-q1-b",
				},
				{
					Question: model.Question{
						ID:   "gb-q2",
						Text: "What does this print?",
						CodeSnippet: strPtr(`s := []int{1, 2, 3}
fmt.Println(len(s), cap(s))`),
						Points:           2,
						TimeLimitSeconds: 90,
						Options: []model.Option{
							{ID: "gb-q2-a", Text: "3 3"},
							{ID: "gb-q2-b", Text: "3 6"},
							{ID: "gb-q2-c", Text: "2 3"},
						},
					},
					CorrectOptionID: "gb-q2-a",
				},
				{
					Question: model.Question{
						ID:               "gb-q3",
						Text:             "Which builtin recovers from a panic?",
						Points:           1,
						TimeLimitSeconds: 45,
						Options: []model.Option{
							{ID: "gb-q3-a", Text: "catch"},
							{ID: "gb-q3-b", Text: "rescue"},
							{ID: "gb-q3-c", Text: "recover"},
						},
					},
					CorrectOptionID: "gb-q3-c",
				},
			},
		},
		{
			Quiz: model.Quiz{
				ID:                     "concurrency-cert",
				Title:                  "Concurrency Certification",
				Description:            "Registration-gated mock certification exam.",
				TimeLimitMinutes:       intPtr(5),
				PassingScorePercentage: 80,
				MaxAttempts:            2,
				RequiresRegistration:   true,
			},
			Questions: []Question{
				{
					Question: model.Question{
						ID:               "cc-q1",
						Text:             "Which primitive delivers a value from one goroutine to another?",
						Points:           1,
						TimeLimitSeconds: 30,
						Options: []model.Option{
							{ID: "cc-q1-a", Text: "channel"},
							{ID: "cc-q1-b", Text: "mutex"},
							{ID: "cc-q1-c", Text: "atomic.Value"},
						},
					},
					CorrectOptionID: "cc-q1-a",
				},
				{
					Question: model.Question{
						ID:               "cc-q2",
						Text:             "sync.WaitGroup.Wait returns when the counter reaches what value?",
						Points:           1,
						TimeLimitSeconds: 30,
						Options: []model.Option{
							{ID: "cc-q2-a", Text: "zero"},
							{ID: "cc-q2-b", Text: "one"},
							{ID: "cc-q2-c", Text: "it never returns"},
						},
					},
					CorrectOptionID: "cc-q2-a",
				},
			},
		},
	}
}
