package config

const (
	defaultDataDir              = "~/.local/share/reelcast"
	defaultLogDir               = "~/.local/share/reelcast/logs"
	defaultAPIBind              = "127.0.0.1:7491"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultNotifyTimeout        = 10
	defaultMinScore             = 40
	defaultKeywordBonus         = 5
	defaultMaxKeywordBonus      = 10
	defaultIntervalMinutes      = 60
	defaultMaxItemsPerRun       = 5
	defaultStageTimeout         = 600
	defaultFetchTimeout         = 30
	defaultMaxScriptChars       = 2000
	defaultMinScriptChars       = 40
	defaultMaxAudioSeconds      = 180
	defaultRetryAttempts        = 3
	defaultRetryInitialMS       = 500
	defaultRetryMaxSeconds      = 30
	defaultProviderTimeout      = 60
	defaultAvatarPollInterval   = 10
	defaultAvatarJobTimeout     = 900
	defaultAvatarMaxDuration    = 180
	defaultSourcesPerMinute     = 60
	defaultTextGenPerMinute     = 20
	defaultTTSPerMinute         = 20
	defaultAvatarPerMinute      = 6
	defaultPlatformPerMinute    = 30
	defaultSchedulerTick        = 60
	defaultSlotsAhead           = 3
	defaultMaxDaysAhead         = 14
	defaultInteractionPoll      = 300
	defaultRepliesPerHour       = 5
	defaultInteractionLookback  = 72
	defaultTextPlatformMaxChars = 280
)

var defaultSlots = []string{"09:00", "13:00", "18:00"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout:  defaultNotifyTimeout,
			RunSummary:      true,
			PublishFailures: true,
			Errors:          true,
		},
		Scoring: Scoring{
			MinScore:        defaultMinScore,
			Keywords:        []string{"world championship", "grandmaster", "brilliancy", "record", "upset"},
			KeywordBonus:    defaultKeywordBonus,
			MaxKeywordBonus: defaultMaxKeywordBonus,
			CategoryWeights: map[string]float64{
				"tournament":  10,
				"game":        8,
				"analysis":    6,
				"news":        4,
				"educational": 2,
			},
		},
		Pipeline: Pipeline{
			IntervalMinutes: defaultIntervalMinutes,
			MaxItemsPerRun:  defaultMaxItemsPerRun,
			StageTimeout:    defaultStageTimeout,
			FetchTimeout:    defaultFetchTimeout,
			MaxScriptChars:  defaultMaxScriptChars,
			MinScriptChars:  defaultMinScriptChars,
			MaxAudioSeconds: defaultMaxAudioSeconds,
		},
		Retry: Retry{
			MaxAttempts:       defaultRetryAttempts,
			InitialBackoffMS:  defaultRetryInitialMS,
			MaxBackoffSeconds: defaultRetryMaxSeconds,
		},
		Providers: Providers{
			TextGen: Provider{TimeoutSeconds: defaultProviderTimeout},
			TTS:     Provider{TimeoutSeconds: defaultProviderTimeout},
			Avatar: Avatar{
				TimeoutSeconds:      defaultProviderTimeout,
				PollIntervalSeconds: defaultAvatarPollInterval,
				JobTimeoutSeconds:   defaultAvatarJobTimeout,
				MaxDurationSeconds:  defaultAvatarMaxDuration,
			},
		},
		RateLimits: RateLimits{
			SourcesPerMinute:  defaultSourcesPerMinute,
			TextGenPerMinute:  defaultTextGenPerMinute,
			TTSPerMinute:      defaultTTSPerMinute,
			AvatarPerMinute:   defaultAvatarPerMinute,
			PlatformPerMinute: defaultPlatformPerMinute,
		},
		Scheduler: Scheduler{
			Slots:        append([]string(nil), defaultSlots...),
			SlotsAhead:   defaultSlotsAhead,
			TickSeconds:  defaultSchedulerTick,
			MaxDaysAhead: defaultMaxDaysAhead,
		},
		Platforms: []Platform{
			{Name: "youtube", MinDurationSeconds: 60, MaxDurationSeconds: 90, Aspect: "9:16", Format: "mp4"},
			{Name: "tiktok", MinDurationSeconds: 30, MaxDurationSeconds: 45, Aspect: "9:16", Format: "mp4"},
			{Name: "facebook", MinDurationSeconds: 120, MaxDurationSeconds: 180, Aspect: "16:9", Format: "mp4"},
			{Name: "twitter", TextOnly: true, Format: "text", MaxTextChars: defaultTextPlatformMaxChars},
		},
		Interaction: Interaction{
			Enabled:             true,
			PollIntervalSeconds: defaultInteractionPoll,
			RepliesPerHour:      defaultRepliesPerHour,
			LookbackHours:       defaultInteractionLookback,
			Templates: map[string][]string{
				"positive": {
					"Thanks for watching! Glad you enjoyed it.",
					"Appreciate it! More coverage is on the way.",
					"Thank you! Stay tuned for the next one.",
				},
				"question": {
					"Great question! We'll dig into that in an upcoming video.",
					"Good question. The full game is linked in the description.",
				},
				"thoughtful": {
					"Interesting take, thanks for sharing your analysis.",
					"That's a sharp observation. Thanks for adding to the discussion.",
				},
			},
		},
		Styles: []Style{
			{Category: "tournament", Tone: "energetic", Voice: "broadcaster", Background: "tournament_hall"},
			{Category: "game", Tone: "dramatic", Voice: "commentator", Background: "chessboard"},
			{Category: "analysis", Tone: "analytical", Voice: "coach", Background: "study"},
			{Category: "news", Tone: "informative", Voice: "anchor", Background: "newsroom"},
			{Category: "educational", Tone: "friendly", Voice: "teacher", Background: "classroom"},
		},
	}
}
