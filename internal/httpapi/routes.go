package httpapi

import (
	"voice-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the call-control API on v1. Authentication must already run on v1;
// role checks are applied here.
func (h Handlers) Register(v1 *gin.RouterGroup) {
	read := rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleViewer)
	write := rbac.RequireAnyRole(rbac.RoleOperator)
	admin := rbac.RequireAnyRole(rbac.RoleAdmin)

	v1.GET("/me", h.Me)

	callsGroup := v1.Group("/calls")
	{
		callsGroup.GET("", read, h.QueryCallHistory)
		callsGroup.POST("", write, h.PlaceCall)
		callsGroup.GET("/:call_sid", read, h.GetCall)
		callsGroup.GET("/:call_sid/state", read, h.GetCallState)
		callsGroup.GET("/:call_sid/recordings", read, h.ListRecordings)
		callsGroup.POST("/:call_sid/end", write, h.EndCall)
	}

	v1.DELETE("/recordings/:recording_sid", write, h.DeleteRecording)
	v1.POST("/messages", write, h.SendMessage)

	docs := v1.Group("/twiml", write)
	{
		docs.POST("/ivr-menu", h.BuildIVRMenu)
		docs.POST("/conference", h.BuildConference)
		docs.POST("/transfer", h.BuildTransfer)
		docs.POST("/hold", h.BuildHold)
		docs.POST("/voicemail", h.BuildVoicemail)
	}

	ivr := v1.Group("/ivr", admin)
	{
		ivr.GET("/override", h.GetIVROverride)
		ivr.PUT("/override", h.SetIVROverride)
		ivr.DELETE("/override", h.ClearIVROverride)
	}
}
