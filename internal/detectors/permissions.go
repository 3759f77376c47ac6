package detectors

import "github.com/bwmarrin/discordgo"

// LockdownDenyMask is what a lockdown removes from @everyone.
const LockdownDenyMask int64 = discordgo.PermissionSendMessages |
	discordgo.PermissionVoiceConnect |
	discordgo.PermissionSendMessagesInThreads |
	discordgo.PermissionCreatePublicThreads |
	discordgo.PermissionAddReactions

// ApplyLockdown returns the overwrite that denies the lockdown bits on top of
// an existing one.
func ApplyLockdown(allow, deny int64) (int64, int64) {
	return allow &^ LockdownDenyMask, deny | LockdownDenyMask
}

// IsLocked reports whether an overwrite already denies every lockdown bit.
func IsLocked(allow, deny int64) bool {
	return deny&LockdownDenyMask == LockdownDenyMask && allow&LockdownDenyMask == 0
}

func IsLockableChannel(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildCategory,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildStageVoice,
		discordgo.ChannelTypeGuildForum:
		return true
	default:
		return false
	}
}
