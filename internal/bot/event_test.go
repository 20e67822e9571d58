package bot_test

import (
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/bot"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decode", func() {
	It("decodes commands with a bot mention and arguments", func() {
		ev, ok := bot.Decode(privateMessage("/Sprints@tracker_bot PROJ  7"))
		Expect(ok).To(BeTrue())

		cmd, isCmd := ev.(bot.CommandEvent)
		Expect(isCmd).To(BeTrue())
		Expect(cmd.Command).To(Equal("sprints"))
		Expect(cmd.Args).To(Equal([]string{"PROJ", "7"}))
		Expect(cmd.Requester).To(Equal(access.RequesterIdentity{ID: "42", Username: "alice"}))
		Expect(cmd.ChatType).To(Equal(telegram.ChatPrivate))
		Expect(cmd.FirstName).To(Equal("Alice"))
	})

	It("decodes callbacks into action and arguments", func() {
		ev, ok := bot.Decode(callback("report PROJ 7"))
		Expect(ok).To(BeTrue())

		cb := ev.(bot.CallbackEvent)
		Expect(cb.CallbackID).To(Equal("cb-1"))
		Expect(cb.Action).To(Equal("report"))
		Expect(cb.Args).To(Equal([]string{"PROJ", "7"}))
		Expect(cb.ChatID).To(Equal(int64(42)))
		Expect(cb.MessageID).To(Equal(11))
	})

	It("answers callbacks without a message in the sender's private chat", func() {
		u := callback("projects")
		u.CallbackQuery.Message = nil

		ev, ok := bot.Decode(u)
		Expect(ok).To(BeTrue())
		Expect(ev.EventMeta().ChatID).To(Equal(int64(42)))
		Expect(ev.EventMeta().ChatType).To(Equal(telegram.ChatPrivate))
	})

	It("keeps the topic of a message sent to a forum topic", func() {
		ev, ok := bot.Decode(topicMessage(supergroupID, "[Jira&Bot]:key=PROJ", "login is broken"))
		Expect(ok).To(BeTrue())

		text := ev.(bot.TextEvent)
		Expect(text.Text).To(Equal("login is broken"))
		Expect(text.ThreadID).To(Equal(5))
		Expect(text.TopicName).To(Equal("[Jira&Bot]:key=PROJ"))
		Expect(text.LastName).To(Equal("Smith"))
	})

	It("picks the largest photo size", func() {
		u := topicMessage(supergroupID, "[Jira&Bot]:key=PROJ", "")
		u.Message.Caption = "see screenshot"
		u.Message.Photo = []telegram.PhotoSize{
			{FileID: "small", Width: 90, Height: 60},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		}

		ev, ok := bot.Decode(u)
		Expect(ok).To(BeTrue())

		photo := ev.(bot.PhotoEvent)
		Expect(photo.FileID).To(Equal("large"))
		Expect(photo.Caption).To(Equal("see screenshot"))
	})

	DescribeTable("ignores updates the bot does not act on",
		func(u telegram.Update) {
			_, ok := bot.Decode(u)
			Expect(ok).To(BeFalse())
		},
		Entry("empty update", telegram.Update{UpdateID: 9}),
		Entry("message from a bot", telegram.Update{Message: &telegram.Message{
			From: &telegram.User{ID: 1, IsBot: true},
			Text: "hello",
		}}),
		Entry("message without sender", telegram.Update{Message: &telegram.Message{Text: "hello"}}),
		Entry("blank text", privateMessage("   ")),
		Entry("empty callback data", telegram.Update{CallbackQuery: &telegram.CallbackQuery{ID: "x"}}),
	)

	It("treats a lone slash as text", func() {
		ev, ok := bot.Decode(privateMessage("/"))
		Expect(ok).To(BeTrue())
		Expect(ev).To(BeAssignableToTypeOf(bot.TextEvent{}))
	})
})
