package rest

import (
	domainPost "github.com/postpilot/postpilot/domains/post"
	"github.com/postpilot/postpilot/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Queue struct {
	Service domainPost.IQueueUsecase
}

func InitRestQueue(app fiber.Router, service domainPost.IQueueUsecase) Queue {
	rest := Queue{Service: service}

	app.Post("/posts", rest.CreatePost)
	app.Get("/posts", rest.ListPosts)
	app.Get("/posts/:id", rest.GetPost)
	app.Put("/posts/:id", rest.UpdatePost)
	app.Post("/posts/:id/cancel", rest.CancelPost)
	app.Post("/posts/:id/pause", rest.PausePost)
	app.Post("/posts/:id/resume", rest.ResumePost)
	app.Post("/posts/:id/retry", rest.RetryPost)
	return rest
}

func (controller *Queue) CreatePost(c *fiber.Ctx) error {
	var request CreatePostRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	enqueue := domainPost.EnqueueRequest{
		Kind:       domainPost.ContentKind(request.Kind),
		Message:    request.Message,
		Link:       request.Link,
		AltText:    request.AltText,
		ImageRef:   request.ImageRef,
		Timezone:   request.Timezone,
		Recurrence: domainPost.RecurrenceType(request.Recurrence),
	}
	if request.ScheduleTime != "" {
		enqueue.ScheduleTime = parseTimeField("schedule_time", request.ScheduleTime)
	}
	if request.RecurrenceEnd != nil {
		end := parseTimeField("recurrence_end", *request.RecurrenceEnd)
		enqueue.RecurrenceEnd = &end
	}

	post, err := controller.Service.Enqueue(c.UserContext(), enqueue)
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Post scheduled",
		Results: toPostResponse(post),
	})
}

func (controller *Queue) ListPosts(c *fiber.Ctx) error {
	status := domainPost.PostStatus(c.Query("status"))
	limit := c.QueryInt("limit")
	offset := c.QueryInt("offset")

	posts, err := controller.Service.List(c.UserContext(), status, limit, offset)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Posts retrieved",
		Results: toPostResponses(posts),
	})
}

func (controller *Queue) GetPost(c *fiber.Ctx) error {
	post, err := controller.Service.Get(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post retrieved",
		Results: toPostResponse(post),
	})
}

func (controller *Queue) UpdatePost(c *fiber.Ctx) error {
	var request UpdatePostRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	update := domainPost.UpdateRequest{Message: request.Message}
	if request.ScheduleTime != nil {
		t := parseTimeField("schedule_time", *request.ScheduleTime)
		update.ScheduleTime = &t
	}
	if request.Recurrence != nil {
		recurrence := domainPost.RecurrenceType(*request.Recurrence)
		update.Recurrence = &recurrence
	}

	post, err := controller.Service.Update(c.UserContext(), c.Params("id"), update)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post updated",
		Results: toPostResponse(post),
	})
}

func (controller *Queue) CancelPost(c *fiber.Ctx) error {
	result, err := controller.Service.Cancel(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	message := "Post cancelled"
	if result.InFlight {
		message = "Post is mid-publish, cancellation takes effect when the attempt completes"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: fiber.Map{
			"post":      toPostResponse(result.Post),
			"in_flight": result.InFlight,
		},
	})
}

func (controller *Queue) PausePost(c *fiber.Ctx) error {
	post, err := controller.Service.Pause(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post paused",
		Results: toPostResponse(post),
	})
}

func (controller *Queue) ResumePost(c *fiber.Ctx) error {
	post, err := controller.Service.Resume(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post resumed",
		Results: toPostResponse(post),
	})
}

func (controller *Queue) RetryPost(c *fiber.Ctx) error {
	post, err := controller.Service.Retry(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post queued for retry",
		Results: toPostResponse(post),
	})
}
