package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wanicli/wani/internal/ui"
	"github.com/wanicli/wani/internal/wanidata"
)

var reviewCount int

var reviewCmd = &cobra.Command{
	Use:     "review",
	Aliases: []string{"r"},
	Short:   "Review due items",
	Long: `Run a review session over assignments that are due.

Graded results are queued locally and submitted on the next 'wani sync',
so reviewing works offline. Meaning answers are typed in English; reading
answers are typed in kana. Enter a blank line to quit early; anything
already graded stays queued.`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().IntVarP(&reviewCount, "count", "n", 10, "maximum items per session")
	rootCmd.AddCommand(reviewCmd)
}

// reviewTask is one prompt for one subject: its meaning or its reading.
type reviewTask struct {
	isMeaning bool
	done      bool
}

func runReview(cmd *cobra.Command, args []string) error {
	db, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	due, err := db.DueAssignments(ctx, time.Now(), reviewCount)
	if err != nil {
		return fmt.Errorf("failed to load due assignments: %w", err)
	}
	if len(due) == 0 {
		fmt.Println("No reviews available right now.")
		return nil
	}

	fmt.Printf("%s\n\n", ui.HeadlineStyle.Render(fmt.Sprintf("Reviewing %d items", len(due))))
	markup := ui.MarkupArgs()
	in := bufio.NewScanner(os.Stdin)

	completed := 0
	for _, assignment := range due {
		subject, err := db.Subject(ctx, assignment.Data.SubjectID, assignment.Data.SubjectType)
		if err != nil {
			return fmt.Errorf("failed to load subject %d: %w", assignment.Data.SubjectID, err)
		}

		review, quit := reviewSubject(in, subject, &markup)
		if quit {
			break
		}
		review.AssignmentID = assignment.ID
		review.CreatedAt = time.Now().UTC()

		if _, err := db.EnqueueReview(ctx, review); err != nil {
			return fmt.Errorf("failed to queue review for assignment %d: %w", assignment.ID, err)
		}
		completed++
	}

	if completed > 0 {
		fmt.Printf("\nQueued %d reviews. Run 'wani sync' to submit them.\n", completed)
	}
	return nil
}

// reviewSubject runs the meaning task, then the reading task for subject
// kinds that have one. Returns quit=true on EOF or a blank line before any
// grading happened for the current prompt.
func reviewSubject(in *bufio.Scanner, subject wanidata.Subject, markup *wanidata.FmtArgs) (wanidata.NewReview, bool) {
	tasks := []reviewTask{{isMeaning: true}}
	switch subject.(type) {
	case wanidata.Kanji, wanidata.Vocab:
		tasks = append(tasks, reviewTask{isMeaning: false})
	}

	characters := subjectCharacters(subject)
	style := ui.StyleFor(subject.SubjectType())

	var review wanidata.NewReview
	for i := range tasks {
		task := &tasks[i]
		for !task.done {
			prompt := "meaning"
			if !task.isMeaning {
				prompt = "reading"
			}
			fmt.Printf("%s (%s): ", style.Render(characters), prompt)

			if !in.Scan() {
				return review, true
			}
			raw := strings.TrimSpace(in.Text())
			if raw == "" {
				return review, true
			}
			guess := strings.ToLower(raw)

			switch wanidata.CheckAnswer(subject, guess, task.isMeaning, raw) {
			case wanidata.AnswerCorrect, wanidata.AnswerFuzzyCorrect:
				fmt.Println("  correct")
				task.done = true
			case wanidata.AnswerMatchesNonAccepted:
				fmt.Println("  that matches, but it is not an accepted answer; try another")
			case wanidata.AnswerKanaWhenMeaning:
				fmt.Println("  that looks like the reading; the meaning is wanted here")
			case wanidata.AnswerBadFormatting:
				fmt.Println("  that answer contains characters that cannot be right; try again")
			default:
				fmt.Printf("  %s\n", ui.ErrorStyle.Render("incorrect"))
				if task.isMeaning {
					review.IncorrectMeaningAnswers++
				} else {
					review.IncorrectReadingAnswers++
				}
				printMnemonic(subject, task.isMeaning, markup)
			}
		}
	}
	review.Status = wanidata.ReviewDone
	return review, false
}

func subjectCharacters(s wanidata.Subject) string {
	switch subj := s.(type) {
	case wanidata.Radical:
		if subj.Data.Characters != nil {
			return *subj.Data.Characters
		}
		// Image-only radicals have no text form; fall back to the slug.
		return subj.Data.Slug
	case wanidata.Kanji:
		return subj.Data.Characters
	case wanidata.Vocab:
		return subj.Data.Characters
	case wanidata.KanaVocab:
		return subj.Data.Characters
	}
	return ""
}

func printMnemonic(s wanidata.Subject, isMeaning bool, markup *wanidata.FmtArgs) {
	text := s.Common().MeaningMnemonic
	if !isMeaning {
		switch subj := s.(type) {
		case wanidata.Kanji:
			text = subj.Data.ReadingMnemonic
		case wanidata.Vocab:
			text = subj.Data.ReadingMnemonic
		}
	}
	if text == "" {
		return
	}
	fmt.Printf("  %s\n", wanidata.FormatText(text, markup))
}
