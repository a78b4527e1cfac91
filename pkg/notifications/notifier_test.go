package notifications_test

import (
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/gitwatch/internal/flags"
	"github.com/nicholas-fedor/gitwatch/pkg/notifications"
)

func newNotificationCommand(args ...string) *cobra.Command {
	command := new(cobra.Command)
	flags.RegisterNotificationFlags(command)
	gomega.Expect(command.ParseFlags(args)).To(gomega.Succeed())

	return command
}

var _ = ginkgo.Describe("notifications", func() {
	ginkgo.Describe("the notifier", func() {
		ginkgo.When("no service URLs are provided", func() {
			ginkgo.It("should have no services", func() {
				notifier, err := notifications.NewNotifier(newNotificationCommand())
				gomega.Expect(err).NotTo(gomega.HaveOccurred())

				defer notifier.Close()

				gomega.Expect(notifier.GetNames()).To(gomega.BeEmpty())
			})
		})

		ginkgo.When("service URLs are provided", func() {
			ginkgo.It("should name services by scheme", func() {
				notifier, err := notifications.NewNotifier(newNotificationCommand(
					"--notification-url", "logger://",
				))
				gomega.Expect(err).NotTo(gomega.HaveOccurred())

				defer notifier.Close()

				gomega.Expect(notifier.GetNames()).To(gomega.Equal([]string{"logger"}))
				gomega.Expect(notifier.GetURLs()).To(gomega.Equal([]string{"logger://"}))
			})
		})

		ginkgo.When("the notification level is invalid", func() {
			ginkgo.It("should return an error", func() {
				_, err := notifications.NewNotifier(newNotificationCommand(
					"--notifications-level", "loud",
				))
				gomega.Expect(err).To(gomega.HaveOccurred())
			})
		})
	})

	ginkgo.Describe("the template data", func() {
		ginkgo.When("the hostname is overridden in a flag", func() {
			ginkgo.It("should use the specified hostname in the title", func() {
				data := notifications.GetTemplateData(newNotificationCommand(
					"--notifications-hostname", "test.host",
				))
				gomega.Expect(data.Host).To(gomega.Equal("test.host"))
				gomega.Expect(data.Title).To(gomega.Equal("Repository changes on test.host"))
			})
		})

		ginkgo.When("a title tag is set", func() {
			ginkgo.It("should use the prefix in the title", func() {
				data := notifications.GetTemplateData(newNotificationCommand(
					"--notifications-hostname", "test.host",
					"--notification-title-tag", "PREFIX",
				))
				gomega.Expect(data.Title).To(gomega.Equal("[PREFIX] Repository changes on test.host"))
			})
		})

		ginkgo.When("the title is skipped", func() {
			ginkgo.It("should leave the title empty", func() {
				data := notifications.GetTemplateData(newNotificationCommand(
					"--notifications-hostname", "test.host",
					"--notification-skip-title",
				))
				gomega.Expect(data.Title).To(gomega.BeEmpty())
			})
		})

		ginkgo.When("no hostname can be resolved", func() {
			ginkgo.It("should use the default simple title", func() {
				gomega.Expect(notifications.GetTitle("", "")).To(gomega.Equal("Repository changes"))
			})
		})
	})

	ginkgo.Describe("the delay", func() {
		ginkgo.It("should convert seconds to a duration", func() {
			command := newNotificationCommand("--notifications-delay", "3")
			gomega.Expect(notifications.GetDelay(command).Seconds()).To(gomega.BeEquivalentTo(3))
		})

		ginkgo.It("should ignore negative values", func() {
			command := newNotificationCommand("--notifications-delay", "-1")
			gomega.Expect(notifications.GetDelay(command)).To(gomega.BeZero())
		})
	})

	ginkgo.Describe("secrets from files", func() {
		ginkgo.It("should read service URLs line by line", func() {
			file := filepath.Join(ginkgo.GinkgoT().TempDir(), "urls")
			gomega.Expect(os.WriteFile(file, []byte("logger://\n\nlogger://\n"), 0o600)).To(gomega.Succeed())

			command := newNotificationCommand("--notification-url", file)
			gomega.Expect(flags.GetSecretsFromFiles(command)).To(gomega.Succeed())

			urls, err := command.PersistentFlags().GetStringArray("notification-url")
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(urls).To(gomega.Equal([]string{"logger://", "logger://"}))
		})
	})
})
